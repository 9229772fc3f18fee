//go:build integration

package catalog

import (
	"context"
	"net/http"
	"testing"

	"go.railyard.dev/internal/rop"
	"go.railyard.dev/internal/specification"
	"go.railyard.dev/internal/store/gormstore"
	"go.railyard.dev/internal/store/mongostore"
	"go.railyard.dev/internal/testutil"
)

func TestIntegration_PostgresCatalog(t *testing.T) {
	ctx := context.Background()

	pg, err := testutil.StartPostgres(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start postgres: %v", err)
	}
	defer pg.Terminate(ctx)

	db, err := gormstore.Connect(ctx, pg.DSN, 4)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer gormstore.Close(db)
	if err := gormstore.Migrate(ctx, db, &Product{}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	exerciseCatalog(t, SQLStores(db))
}

func TestIntegration_MongoCatalog(t *testing.T) {
	ctx := context.Background()

	mc, err := testutil.StartMongo(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start mongo: %v", err)
	}
	defer mc.Terminate(ctx)

	client, err := mongostore.Connect(ctx, mc.DSN, "railyard_test", 4)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Disconnect(ctx)
	if err := EnsureIndexes(ctx, client); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	exerciseCatalog(t, DocumentStores(client))
}

// exerciseCatalog runs the same lifecycle against a real backend.
func exerciseCatalog(t *testing.T, stores StoreFactory) {
	ctx := context.Background()
	svc := NewService(stores, nil)

	var ids []string
	for _, c := range []CreateProduct{
		{Name: "Bolt", SKU: "BOLT-1", PriceCents: 1000, Stock: 5},
		{Name: "Nut", SKU: "NUT-1", PriceCents: 250, Stock: 50},
		{Name: "Washer", SKU: "WSH-1", PriceCents: 15, Stock: 500},
	} {
		r := svc.Create(ctx, c)
		p, err := r.Value()
		if err != nil {
			t.Fatalf("Create %s failed: %v", c.SKU, r)
		}
		ids = append(ids, p.ID)
	}

	if r := svc.Create(ctx, CreateProduct{Name: "Again", SKU: "BOLT-1", PriceCents: 1}); r.StatusCode() != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate SKU, got %v", r)
	}

	by, dir := "priceCents", specification.Ascending
	page, size := 2, 2
	list := svc.List(ctx, specification.SortedAndPaged[Product]{
		Sorting: specification.Sorting[Product]{SortBy: &by, Direction: &dir},
		Paging:  specification.Paging[Product]{Page: &page, PageSize: &size},
	})
	got, err := list.Value()
	if err != nil {
		t.Fatalf("List failed: %v", list)
	}
	if got.TotalItems != 3 || got.TotalPages != 2 || len(got.Items) != 1 || got.Items[0].SKU != "BOLT-1" {
		t.Errorf("Unexpected page %+v", got)
	}

	updated := svc.UpdatePrice(ctx, ids[0], UpdatePrice{PriceCents: 1100})
	if updated.IsFailure() {
		t.Fatalf("UpdatePrice failed: %v", updated)
	}
	if p := svc.Get(ctx, ids[0]).OrElse(Product{}); p.PriceCents != 1100 {
		t.Errorf("Expected 1100 after update, got %d", p.PriceCents)
	}

	if r := svc.Delete(ctx, ids[1]); r.IsFailure() {
		t.Fatalf("Delete failed: %v", r)
	}
	again := svc.Delete(ctx, ids[1])
	if first, _ := again.FirstError(); first.Code != rop.CodeSaveError {
		t.Errorf("Expected Save.Error on second delete, got %v", again)
	}
	if r := svc.Get(ctx, ids[1]); r.StatusCode() != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %v", r)
	}
}
