package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"go.railyard.dev/internal/common/repository"
)

// Op is a staged write returning the number of documents it touched.
type Op func(ctx context.Context, db *mongo.Database) (int64, error)

// Store is a unit of work over a MongoDB database. It is meant for one
// request and is not safe for concurrent use.
type Store struct {
	client  *Client
	session mongo.Session
	ops     []Op
}

var _ repository.Store = (*Store)(nil)

// New creates a Store on client.
func New(client *Client) *Store {
	return &Store{client: client}
}

// Context returns ctx bound to the running transaction, if any. Reads that
// must see uncommitted writes use it.
func (s *Store) Context(ctx context.Context) context.Context {
	if s.session != nil {
		return mongo.NewSessionContext(ctx, s.session)
	}
	return ctx
}

// Collection returns a collection from the store's database.
func (s *Store) Collection(name string) *mongo.Collection {
	return s.client.Collection(name)
}

// Stage queues op for the next SaveChanges.
func (s *Store) Stage(op Op) {
	s.ops = append(s.ops, op)
}

// InsertOne stages an insert of doc into collection.
func (s *Store) InsertOne(collection string, doc any) {
	s.Stage(func(ctx context.Context, db *mongo.Database) (int64, error) {
		if _, err := db.Collection(collection).InsertOne(ctx, doc); err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// UpdateOne stages an update of the first document matching filter.
// Matched documents count as changed.
func (s *Store) UpdateOne(collection string, filter, update any) {
	s.Stage(func(ctx context.Context, db *mongo.Database) (int64, error) {
		res, err := db.Collection(collection).UpdateOne(ctx, filter, update)
		if err != nil {
			return 0, err
		}
		return res.MatchedCount, nil
	})
}

// DeleteOne stages a delete of the first document matching filter.
func (s *Store) DeleteOne(collection string, filter any) {
	s.Stage(func(ctx context.Context, db *mongo.Database) (int64, error) {
		res, err := db.Collection(collection).DeleteOne(ctx, filter)
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
}

// HasChanges reports whether writes are staged.
func (s *Store) HasChanges() bool {
	return len(s.ops) > 0
}

// SaveChanges runs the staged writes and returns the number of documents
// touched. Several writes outside an explicit transaction run in one of
// their own. Staged writes are discarded whatever the outcome.
func (s *Store) SaveChanges(ctx context.Context) (int64, error) {
	ops := s.ops
	s.ops = nil

	var total int64
	run := func(ctx context.Context) error {
		for _, op := range ops {
			n, err := op(ctx, s.client.Database())
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	}

	var err error
	switch {
	case len(ops) == 0:
		return 0, nil
	case s.session != nil:
		err = run(mongo.NewSessionContext(ctx, s.session))
	case len(ops) == 1:
		err = run(ctx)
	default:
		err = s.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			total = 0
			return run(sessCtx)
		})
	}
	if err != nil {
		return 0, Translate(err)
	}
	return total, nil
}

// Begin starts an explicit transaction on a new session.
func (s *Store) Begin(ctx context.Context) error {
	if s.session != nil {
		return repository.ErrTransactionActive
	}
	session, err := s.client.client.StartSession()
	if err != nil {
		return err
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return err
	}
	s.session = session
	return nil
}

// Commit commits the explicit transaction and ends its session.
func (s *Store) Commit(ctx context.Context) error {
	if s.session == nil {
		return repository.ErrNoTransaction
	}
	session := s.session
	s.session = nil
	defer session.EndSession(ctx)
	return Translate(session.CommitTransaction(ctx))
}

// Rollback aborts the explicit transaction, ends its session and drops
// staged writes.
func (s *Store) Rollback(ctx context.Context) error {
	if s.session == nil {
		return repository.ErrNoTransaction
	}
	session := s.session
	s.session = nil
	s.ops = nil
	defer session.EndSession(ctx)
	return Translate(session.AbortTransaction(ctx))
}

// Translate maps driver errors onto repository sentinels.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %v", repository.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicateKey, err)
	default:
		return err
	}
}
