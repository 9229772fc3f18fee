package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"

	"go.railyard.dev/internal/common/repository"
	"go.railyard.dev/internal/specification"
	"go.railyard.dev/internal/store/gormstore"
	"go.railyard.dev/internal/store/mongostore"
)

// Store is one unit of work over products. Writes are staged until the
// repository saves them; Find returns repository.ErrNotFound for unknown
// ids.
type Store interface {
	repository.Store

	Products() specification.Query[Product]
	Find(ctx context.Context, id string) (Product, error)
	Add(p Product)
	SetPrice(id string, priceCents int64)
	Remove(id string)
}

// StoreFactory opens a fresh unit of work. Each request gets its own.
type StoreFactory func() Store

// sqlStore keeps products in PostgreSQL.
type sqlStore struct {
	*gormstore.Store
}

// SQLStores returns a factory of PostgreSQL-backed stores.
func SQLStores(db *gorm.DB) StoreFactory {
	return func() Store { return &sqlStore{Store: gormstore.New(db)} }
}

func (s *sqlStore) Products() specification.Query[Product] {
	return gormstore.From[Product](s.Store)
}

func (s *sqlStore) Find(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.DB(ctx).Where("id = ?", id).First(&p).Error
	return p, gormstore.Translate(err)
}

func (s *sqlStore) Add(p Product) {
	s.Create(&p)
}

func (s *sqlStore) SetPrice(id string, priceCents int64) {
	s.Updates(&Product{}, map[string]any{"price_cents": priceCents}, "id = ?", id)
}

func (s *sqlStore) Remove(id string) {
	s.Delete(&Product{}, "id = ?", id)
}

// Collection is the MongoDB collection holding products.
const Collection = "products"

// documentStore keeps products in MongoDB.
type documentStore struct {
	*mongostore.Store
}

// DocumentStores returns a factory of MongoDB-backed stores.
func DocumentStores(client *mongostore.Client) StoreFactory {
	return func() Store { return &documentStore{Store: mongostore.New(client)} }
}

// EnsureIndexes creates the unique SKU index. It is idempotent.
func EnsureIndexes(ctx context.Context, client *mongostore.Client) error {
	_, err := client.Collection(Collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sku", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("sku_unique"),
	})
	return err
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func (s *documentStore) Products() specification.Query[Product] {
	return mongostore.From[Product](s.Store, Collection, nil)
}

func (s *documentStore) Find(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.Collection(Collection).FindOne(s.Context(ctx), byID(id)).Decode(&p)
	return p, mongostore.Translate(err)
}

func (s *documentStore) Add(p Product) {
	s.InsertOne(Collection, p)
}

func (s *documentStore) SetPrice(id string, priceCents int64) {
	s.UpdateOne(Collection, byID(id), bson.D{{Key: "$set", Value: bson.D{{Key: "priceCents", Value: priceCents}}}})
}

func (s *documentStore) Remove(id string) {
	s.DeleteOne(Collection, byID(id))
}
