package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.railyard.dev/internal/rop"
	"go.railyard.dev/internal/specification"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	boltID = "0b7f4a3e-8d55-4b8e-9a1a-1f2d3c4b5a61"
	nutID  = "1c8e5b4f-9e66-4c9f-8b2b-2e3f4d5c6b72"
)

func seeded() *memoryDB {
	return newMemoryDB(
		Product{ID: boltID, Name: "Bolt", SKU: "BOLT-1", PriceCents: 1000, Stock: 5, CreatedAt: fixedNow},
		Product{ID: nutID, Name: "Nut", SKU: "NUT-1", PriceCents: 250, Stock: 50, CreatedAt: fixedNow},
	)
}

func newTestService(db *memoryDB) (*Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	svc := NewService(db.stores(), pub)
	svc.now = func() time.Time { return fixedNow }
	return svc, pub
}

func firstCode[T any](t *testing.T, r rop.Result[T]) string {
	t.Helper()
	first, failed := r.FirstError()
	if !failed {
		t.Fatalf("Expected failure, got success %v", r)
	}
	return first.Code
}

func TestCreate(t *testing.T) {
	db := newMemoryDB()
	svc, pub := newTestService(db)

	r := svc.Create(context.Background(), CreateProduct{Name: "  Washer ", SKU: "WSH-1", PriceCents: 15, Stock: 100})

	p, err := r.Value()
	if err != nil {
		t.Fatalf("Create failed: %v", r)
	}
	if r.StatusCode() != http.StatusCreated {
		t.Errorf("Expected 201, got %d", r.StatusCode())
	}
	if p.Name != "Washer" || p.ID == "" || !p.CreatedAt.Equal(fixedNow) {
		t.Errorf("Unexpected product %+v", p)
	}
	if _, ok := db.get(p.ID); !ok {
		t.Error("Expected product to be saved")
	}
	if got := pub.subjects(); len(got) != 1 || got[0] != SubjectCreated {
		t.Errorf("Expected one created event, got %v", got)
	}
}

func TestCreate_ValidationFailsWithEveryError(t *testing.T) {
	db := newMemoryDB()
	svc, pub := newTestService(db)

	r := svc.Create(context.Background(), CreateProduct{Name: "", SKU: "X", PriceCents: 0, Stock: -1})

	if r.StatusCode() != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", r.StatusCode())
	}
	if n := len(r.Errors()); n != 3 {
		t.Errorf("Expected 3 errors (name, price, stock), got %d: %v", n, r.Errors())
	}
	if db.len() != 0 || len(pub.subjects()) != 0 {
		t.Error("Invalid command must not save or publish")
	}
}

func TestCreate_DuplicateSKU(t *testing.T) {
	svc, pub := newTestService(seeded())

	r := svc.Create(context.Background(), CreateProduct{Name: "Other bolt", SKU: "BOLT-1", PriceCents: 900})

	if code := firstCode(t, r); code != rop.CodeConflict {
		t.Errorf("Expected %s, got %s", rop.CodeConflict, code)
	}
	if r.StatusCode() != http.StatusConflict {
		t.Errorf("Expected 409, got %d", r.StatusCode())
	}
	if len(pub.subjects()) != 0 {
		t.Error("Failed create must not publish")
	}
}

func TestCreate_PublishFailureKeepsResult(t *testing.T) {
	db := newMemoryDB()
	svc, pub := newTestService(db)
	pub.err = errors.New("no responders")

	r := svc.Create(context.Background(), CreateProduct{Name: "Washer", SKU: "WSH-1", PriceCents: 15})

	if r.IsFailure() || r.StatusCode() != http.StatusCreated {
		t.Errorf("Expected 201 success despite publish failure, got %v", r)
	}
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(seeded())

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"existing", boltID, http.StatusOK},
		{"uppercase id", "0B7F4A3E-8D55-4B8E-9A1A-1F2D3C4B5A61", http.StatusOK},
		{"unknown", "9f9f9f9f-0000-4000-8000-000000000000", http.StatusNotFound},
		{"malformed", "bolt", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := svc.Get(context.Background(), tt.id)
			if r.StatusCode() != tt.status {
				t.Errorf("Expected %d, got %d (%v)", tt.status, r.StatusCode(), r)
			}
			if tt.status == http.StatusNotFound && firstCode(t, r) != rop.CodeEntityNotFound {
				t.Errorf("Expected %s", rop.CodeEntityNotFound)
			}
		})
	}
}

func TestList(t *testing.T) {
	svc, _ := newTestService(seeded())
	by, dir := "priceCents", specification.Descending
	page, size := 1, 1

	r := svc.List(context.Background(), specification.SortedAndPaged[Product]{
		Sorting: specification.Sorting[Product]{SortBy: &by, Direction: &dir},
		Paging:  specification.Paging[Product]{Page: &page, PageSize: &size},
	})

	list, err := r.Value()
	if err != nil {
		t.Fatalf("List failed: %v", r)
	}
	if list.TotalItems != 2 || list.TotalPages != 2 {
		t.Errorf("Expected 2 items over 2 pages, got %+v", list)
	}
	if len(list.Items) != 1 || list.Items[0].ID != boltID {
		t.Errorf("Expected the most expensive product first, got %+v", list.Items)
	}
}

func TestList_UnknownSortField(t *testing.T) {
	svc, _ := newTestService(seeded())
	by, dir := "colour", specification.Ascending

	r := svc.List(context.Background(), specification.SortedAndPaged[Product]{
		Sorting: specification.Sorting[Product]{SortBy: &by, Direction: &dir},
	})

	if code := firstCode(t, r); code != rop.CodeSortByInvalid {
		t.Errorf("Expected %s, got %s", rop.CodeSortByInvalid, code)
	}
}

func TestUpdatePrice(t *testing.T) {
	db := seeded()
	svc, pub := newTestService(db)

	r := svc.UpdatePrice(context.Background(), boltID, UpdatePrice{PriceCents: 1200})

	p, err := r.Value()
	if err != nil {
		t.Fatalf("UpdatePrice failed: %v", r)
	}
	if p.PriceCents != 1200 {
		t.Errorf("Expected 1200, got %d", p.PriceCents)
	}
	if saved, _ := db.get(boltID); saved.PriceCents != 1200 {
		t.Errorf("Expected saved price 1200, got %d", saved.PriceCents)
	}

	if len(pub.events) != 1 {
		t.Fatalf("Expected one event, got %d", len(pub.events))
	}
	event, ok := pub.events[0].payload.(PriceChanged)
	if !ok || event.OldCents != 1000 || event.NewCents != 1200 {
		t.Errorf("Unexpected event %+v", pub.events[0])
	}
}

func TestUpdatePrice_Failures(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		price  int64
		status int
		code   string
	}{
		{"unchanged", boltID, 1000, http.StatusUnprocessableEntity, CodePriceUnchanged},
		{"too large", boltID, 1501, http.StatusUnprocessableEntity, CodePriceChangeTooLarge},
		{"too small", boltID, 499, http.StatusUnprocessableEntity, CodePriceChangeTooLarge},
		{"not positive", boltID, 0, http.StatusBadRequest, "PriceCents"},
		{"above maximum", boltID, MaxPriceCents + 1, http.StatusBadRequest, "PriceCents"},
		{"unknown", "9f9f9f9f-0000-4000-8000-000000000000", 1100, http.StatusNotFound, rop.CodeEntityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := seeded()
			svc, pub := newTestService(db)

			r := svc.UpdatePrice(context.Background(), tt.id, UpdatePrice{PriceCents: tt.price})

			if code := firstCode(t, r); code != tt.code {
				t.Errorf("Expected %s, got %s", tt.code, code)
			}
			if r.StatusCode() != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, r.StatusCode())
			}
			if saved, _ := db.get(boltID); saved.PriceCents != 1000 {
				t.Errorf("Price must be unchanged, got %d", saved.PriceCents)
			}
			if len(pub.subjects()) != 0 {
				t.Error("Failed update must not publish")
			}
		})
	}
}

func TestUpdatePrice_SaveFaultRollsBack(t *testing.T) {
	db := seeded()
	db.saveErr = errors.New("connection reset")
	svc, _ := newTestService(db)

	r := svc.UpdatePrice(context.Background(), boltID, UpdatePrice{PriceCents: 1100})

	if code := firstCode(t, r); code != rop.CodeUnhandledException {
		t.Errorf("Expected %s, got %s", rop.CodeUnhandledException, code)
	}
	if saved, _ := db.get(boltID); saved.PriceCents != 1000 {
		t.Errorf("Expected rollback to keep 1000, got %d", saved.PriceCents)
	}
}

func TestDelete(t *testing.T) {
	db := seeded()
	svc, pub := newTestService(db)

	r := svc.Delete(context.Background(), nutID)
	if r.IsFailure() || r.StatusCode() != http.StatusNoContent {
		t.Fatalf("Expected 204, got %v", r)
	}
	if _, ok := db.get(nutID); ok {
		t.Error("Expected product to be removed")
	}

	again := svc.Delete(context.Background(), nutID)
	if code := firstCode(t, again); code != rop.CodeSaveError {
		t.Errorf("Expected %s on second delete, got %s", rop.CodeSaveError, code)
	}
	if again.StatusCode() != http.StatusConflict {
		t.Errorf("Expected 409, got %d", again.StatusCode())
	}

	if got := pub.subjects(); len(got) != 1 || got[0] != SubjectDeleted {
		t.Errorf("Expected one deleted event, got %v", got)
	}
}

func TestCancelledContext(t *testing.T) {
	db := newMemoryDB()
	svc, _ := newTestService(db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := svc.Create(ctx, CreateProduct{Name: "Washer", SKU: "WSH-1", PriceCents: 15})

	if code := firstCode(t, r); code != rop.CodeCancelled {
		t.Errorf("Expected %s, got %s", rop.CodeCancelled, code)
	}
	if db.len() != 0 {
		t.Error("Cancelled command must not save")
	}
}
