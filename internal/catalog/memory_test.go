package catalog

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.railyard.dev/internal/common/repository"
	"go.railyard.dev/internal/specification"
)

// memoryDB is an in-process product table shared by memoryStores.
type memoryDB struct {
	mu   sync.Mutex
	rows map[string]Product

	// saveErr, when set, fails the next SaveChanges.
	saveErr error
}

func newMemoryDB(products ...Product) *memoryDB {
	db := &memoryDB{rows: make(map[string]Product)}
	for _, p := range products {
		db.rows[p.ID] = p
	}
	return db
}

func (db *memoryDB) stores() StoreFactory {
	return func() Store { return &memoryStore{db: db} }
}

func (db *memoryDB) get(id string) (Product, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.rows[id]
	return p, ok
}

func (db *memoryDB) len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.rows)
}

type memoryOp func(rows map[string]Product) (int64, error)

type memoryStore struct {
	db       *memoryDB
	ops      []memoryOp
	snapshot map[string]Product
}

func (s *memoryStore) Products() specification.Query[Product] {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	items := slices.SortedFunc(maps.Values(s.db.rows), func(a, b Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return specification.FromSlice(items)
}

func (s *memoryStore) Find(_ context.Context, id string) (Product, error) {
	p, ok := s.db.get(id)
	if !ok {
		return Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) Add(p Product) {
	s.ops = append(s.ops, func(rows map[string]Product) (int64, error) {
		for _, existing := range rows {
			if existing.SKU == p.SKU {
				return 0, errors.Join(repository.ErrDuplicateKey, errors.New("sku "+p.SKU))
			}
		}
		rows[p.ID] = p
		return 1, nil
	})
}

func (s *memoryStore) SetPrice(id string, priceCents int64) {
	s.ops = append(s.ops, func(rows map[string]Product) (int64, error) {
		p, ok := rows[id]
		if !ok {
			return 0, nil
		}
		p.PriceCents = priceCents
		rows[id] = p
		return 1, nil
	})
}

func (s *memoryStore) Remove(id string) {
	s.ops = append(s.ops, func(rows map[string]Product) (int64, error) {
		if _, ok := rows[id]; !ok {
			return 0, nil
		}
		delete(rows, id)
		return 1, nil
	})
}

func (s *memoryStore) HasChanges() bool { return len(s.ops) > 0 }

func (s *memoryStore) SaveChanges(ctx context.Context) (int64, error) {
	ops := s.ops
	s.ops = nil
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.saveErr; err != nil {
		s.db.saveErr = nil
		return 0, err
	}
	var total int64
	for _, op := range ops {
		n, err := op(s.db.rows)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *memoryStore) Begin(context.Context) error {
	if s.snapshot != nil {
		return repository.ErrTransactionActive
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.snapshot = maps.Clone(s.db.rows)
	return nil
}

func (s *memoryStore) Commit(context.Context) error {
	if s.snapshot == nil {
		return repository.ErrNoTransaction
	}
	s.snapshot = nil
	return nil
}

func (s *memoryStore) Rollback(context.Context) error {
	if s.snapshot == nil {
		return repository.ErrNoTransaction
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.rows = s.snapshot
	s.snapshot = nil
	s.ops = nil
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

type published struct {
	subject string
	payload any
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject, payload})
	return p.err
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.subject
	}
	return out
}
