package mongostore

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.railyard.dev/internal/specification"
)

// Query is a specification.Query over one collection.
type Query[T any] struct {
	store  *Store
	coll   *mongo.Collection
	filter any
	sort   bson.D
	skip   int64
	limit  int64
}

var _ specification.Query[struct{}] = (*Query[struct{}])(nil)

// From starts a query over collection. A nil filter matches everything.
func From[T any](s *Store, collection string, filter any) *Query[T] {
	if filter == nil {
		filter = bson.D{}
	}
	return &Query[T]{store: s, coll: s.Collection(collection), filter: filter}
}

func (q *Query[T]) OrderBy(field *specification.Field, dir specification.Direction) specification.Query[T] {
	cp := *q
	order := 1
	if dir == specification.Descending {
		order = -1
	}
	cp.sort = bson.D{{Key: BSONKey(field), Value: order}}
	return &cp
}

func (q *Query[T]) Skip(n int) specification.Query[T] {
	cp := *q
	cp.skip = int64(n)
	return &cp
}

func (q *Query[T]) Take(n int) specification.Query[T] {
	cp := *q
	cp.limit = int64(n)
	return &cp
}

func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	n, err := q.coll.CountDocuments(q.store.Context(ctx), q.filter)
	return n, Translate(err)
}

func (q *Query[T]) List(ctx context.Context) ([]T, error) {
	ctx = q.store.Context(ctx)
	cursor, err := q.coll.Find(ctx, q.filter, q.findOptions())
	if err != nil {
		return nil, Translate(err)
	}
	defer cursor.Close(ctx)

	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, Translate(err)
	}
	return items, nil
}

func (q *Query[T]) findOptions() *options.FindOptions {
	opts := options.Find()
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	if q.limit > 0 {
		opts.SetLimit(q.limit)
	}
	return opts
}

// BSONKey returns the document key for field: the bson tag name when set,
// otherwise the lowercased field name, as the driver encodes it.
func BSONKey(field *specification.Field) string {
	name, _, _ := strings.Cut(field.Tag.Get("bson"), ",")
	if name != "" && name != "-" {
		return name
	}
	return strings.ToLower(field.Name)
}
