package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.railyard.dev/internal/api"
	"go.railyard.dev/internal/rop"
	"go.railyard.dev/internal/specification"
)

// Handler serves the catalog over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a catalog handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the catalog under /products. Writes go through protect
// when it is non-nil.
func (h *Handler) Routes(r chi.Router, protect func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			if protect != nil {
				r.Use(protect)
			}
			r.Post("/", h.create)
			r.Put("/{id}/price", h.updatePrice)
			r.Delete("/{id}", h.delete)
		})
	})
}

// list handles GET /products?page=&pageSize=&sortBy=&sortDirection=
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	spec := specification.ParseQuery[Product](r.URL.Query())
	api.WriteResult(w, rop.Bind(spec, func(spec specification.SortedAndPaged[Product]) rop.Result[specification.PagedList[Product]] {
		return h.svc.List(r.Context(), spec)
	}))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	api.WriteResult(w, h.svc.Get(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	api.WriteResult(w, rop.Bind(api.DecodeBody[CreateProduct](r), func(cmd CreateProduct) rop.Result[Product] {
		return h.svc.Create(r.Context(), cmd)
	}))
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	api.WriteResult(w, rop.Bind(api.DecodeBody[UpdatePrice](r), func(cmd UpdatePrice) rop.Result[Product] {
		return h.svc.UpdatePrice(r.Context(), id, cmd)
	}))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	api.WriteResult(w, h.svc.Delete(r.Context(), chi.URLParam(r, "id")))
}
