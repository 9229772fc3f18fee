package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.railyard.dev/internal/bus"
	"go.railyard.dev/internal/common/repository"
	"go.railyard.dev/internal/rop"
	"go.railyard.dev/internal/specification"
)

// Event subjects published by the catalog.
const (
	SubjectCreated      = "catalog.product.created"
	SubjectPriceChanged = "catalog.product.price_changed"
	SubjectDeleted      = "catalog.product.deleted"
)

// PriceChanged is the payload of SubjectPriceChanged.
type PriceChanged struct {
	ID       string `json:"id"`
	OldCents int64  `json:"oldCents"`
	NewCents int64  `json:"newCents"`
}

// Deleted is the payload of SubjectDeleted.
type Deleted struct {
	ID string `json:"id"`
}

// Service implements the catalog operations.
type Service struct {
	stores    StoreFactory
	publisher bus.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a service. A nil publisher discards events.
func NewService(stores StoreFactory, publisher bus.Publisher) *Service {
	if publisher == nil {
		publisher = bus.Discard
	}
	return &Service{
		stores:    stores,
		publisher: publisher,
		logger:    slog.Default().With("component", "catalog"),
		now:       time.Now,
	}
}

func (s *Service) open() (Store, *repository.Repository) {
	store := s.stores()
	return store, repository.New(store, Entity).WithLogger(s.logger)
}

// List returns one page of products shaped by spec.
func (s *Service) List(ctx context.Context, spec specification.SortedAndPaged[Product]) rop.Result[specification.PagedList[Product]] {
	store, repo := s.open()
	return repository.TryPagedQuery(ctx, repo, store.Products(), spec)
}

// Get returns the product with id, or Entity.NotFound.
func (s *Service) Get(ctx context.Context, id string) rop.Result[Product] {
	return rop.Bind(parseID(id), func(id string) rop.Result[Product] {
		store, repo := s.open()
		return repository.TryQueryValue(ctx, repo, func(ctx context.Context) (Product, error) {
			return store.Find(ctx, id)
		})
	})
}

// Create validates cmd, saves a new product and announces it. A taken SKU
// fails with Entity.Conflict.
func (s *Service) Create(ctx context.Context, cmd CreateProduct) rop.Result[Product] {
	validated := rop.Validate(rop.Success(cmd), createRules.Validate(cmd))

	created := rop.Bind(validated, func(cmd CreateProduct) rop.Result[Product] {
		store, repo := s.open()
		return repository.TryCommand(ctx, repo, func(context.Context) rop.Result[Product] {
			p := Product{
				ID:         uuid.NewString(),
				Name:       strings.TrimSpace(cmd.Name),
				SKU:        strings.TrimSpace(cmd.SKU),
				PriceCents: cmd.PriceCents,
				Stock:      cmd.Stock,
				CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
			}
			store.Add(p)
			return rop.SuccessStatus(p, http.StatusCreated)
		}, nil)
	})

	return bus.Announce(ctx, s.publisher, SubjectCreated, created, func(p Product) any { return p })
}

// UpdatePrice changes a product's price inside a transaction. The new price
// must differ from the current one by no more than MaxPriceChangePercent.
func (s *Service) UpdatePrice(ctx context.Context, id string, cmd UpdatePrice) rop.Result[Product] {
	validated := rop.Validate(parseID(id), priceRules.Validate(cmd))

	var old int64
	updated := rop.Bind(validated, func(id string) rop.Result[Product] {
		store, repo := s.open()
		return repository.WithTransaction(ctx, repo, func(ctx context.Context) rop.Result[Product] {
			current := repository.TryQueryValue(ctx, repo, func(ctx context.Context) (Product, error) {
				return store.Find(ctx, id)
			})
			current = rop.Verify(current, func(p Product) bool { return p.PriceCents != cmd.PriceCents }, priceUnchanged())
			current = rop.Verify(current, func(p Product) bool { return withinBand(p.PriceCents, cmd.PriceCents) }, priceChangeTooLarge())

			return rop.Bind(current, func(p Product) rop.Result[Product] {
				return repository.TryCommand(ctx, repo, func(context.Context) rop.Result[Product] {
					old = p.PriceCents
					store.SetPrice(p.ID, cmd.PriceCents)
					p.PriceCents = cmd.PriceCents
					return rop.Success(p)
				}, nil)
			})
		})
	})

	return bus.Announce(ctx, s.publisher, SubjectPriceChanged, updated, func(p Product) any {
		return PriceChanged{ID: p.ID, OldCents: old, NewCents: p.PriceCents}
	})
}

// Delete removes a product. Deleting a product that no longer exists saves
// nothing and fails with Save.Error.
func (s *Service) Delete(ctx context.Context, id string) rop.Result[struct{}] {
	deleted := rop.Bind(parseID(id), func(id string) rop.Result[string] {
		store, repo := s.open()
		return repository.TryCommand(ctx, repo, func(context.Context) rop.Result[string] {
			store.Remove(id)
			return rop.SuccessStatus(id, http.StatusNoContent)
		}, nil)
	})
	deleted = bus.Announce(ctx, s.publisher, SubjectDeleted, deleted, func(id string) any { return Deleted{ID: id} })

	return rop.Map(deleted, func(string) struct{} { return struct{}{} })
}

// parseID rejects ids that cannot name a product. They are reported as
// not found rather than invalid.
func parseID(id string) rop.Result[string] {
	u, err := uuid.Parse(id)
	if err != nil {
		return rop.FromHTTPError[string](rop.EntityNotFound(Entity))
	}
	return rop.Success(u.String())
}
