//go:build integration

package gormstore

import (
	"context"
	"errors"
	"testing"

	"go.railyard.dev/internal/common/repository"
	"go.railyard.dev/internal/specification"
	"go.railyard.dev/internal/testutil"
)

type part struct {
	ID   uint   `gorm:"primaryKey"`
	SKU  string `gorm:"uniqueIndex"`
	Name string
}

func TestIntegration_UnitOfWork(t *testing.T) {
	ctx := context.Background()

	pg, err := testutil.StartPostgres(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start postgres: %v", err)
	}
	defer pg.Terminate(ctx)

	db, err := Connect(ctx, pg.DSN, 4)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer Close(db)
	if err := Migrate(ctx, db, &part{}); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	s := New(db)
	s.Create(&part{SKU: "A-1", Name: "bolt"})
	s.Create(&part{SKU: "A-2", Name: "anchor"})
	n, err := s.SaveChanges(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 rows saved, got (%d, %v)", n, err)
	}

	t.Run("update of missing row affects nothing", func(t *testing.T) {
		s.Updates(&part{}, map[string]any{"name": "x"}, "sku = ?", "missing")
		n, err := s.SaveChanges(ctx)
		if err != nil || n != 0 {
			t.Errorf("Expected (0, nil), got (%d, %v)", n, err)
		}
	})

	t.Run("duplicate key", func(t *testing.T) {
		s.Create(&part{SKU: "A-1", Name: "dup"})
		_, err := s.SaveChanges(ctx)
		if !errors.Is(err, repository.ErrDuplicateKey) {
			t.Errorf("Expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		if err := s.Begin(ctx); err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
		s.Create(&part{SKU: "B-1", Name: "temp"})
		if _, err := s.SaveChanges(ctx); err != nil {
			t.Fatalf("SaveChanges failed: %v", err)
		}
		if err := s.Rollback(ctx); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		total, _ := From[part](s).Count(ctx)
		if total != 2 {
			t.Errorf("Expected rollback to leave 2 rows, got %d", total)
		}
	})

	t.Run("sorted page", func(t *testing.T) {
		field, _ := specification.ResolveField[part]("name")
		items, err := From[part](s).OrderBy(field, specification.Ascending).Take(1).List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(items) != 1 || items[0].Name != "anchor" {
			t.Errorf("Expected anchor first, got %+v", items)
		}
	})
}
