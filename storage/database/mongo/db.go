// Package mongodb implements the repositories on MongoDB. Fields and field responses are
// embedded in their owning document, so replacing them is a single atomic write.
package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luna-app/luna/core"
)

const (
	usersCollection     = "users"
	formsCollection     = "forms"
	responsesCollection = "responses"
)

// DB is the process-wide MongoDB handle.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ core.Store = (*DB)(nil) // interface compliance check

// Open connects to conf's MongoDB deployment and makes sure the indexes exist.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	return OpenURI(ctx, conf.Database.MongoURI(), conf.Database.Name)
}

func OpenURI(ctx context.Context, uri, dbName string) (*DB, error) {
	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	db := &DB{client: client, db: client.Database(dbName)}
	if err = db.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err = db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return errors.Wrap(db.client.Ping(ctx, nil), "pinging mongodb")
}

func (db *DB) Close(ctx context.Context) error {
	return errors.Wrap(db.client.Disconnect(ctx), "disconnecting from mongodb")
}

// Drop removes the whole database.
func (db *DB) Drop(ctx context.Context) error {
	return db.db.Drop(ctx)
}

func (db *DB) collection(name string) *mongo.Collection {
	return db.db.Collection(name)
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		formsCollection: {
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		responsesCollection: {
			{Keys: bson.D{{Key: "formId", Value: 1}, {Key: "userId", Value: 1}}},
			// at most one submitted response per user and form
			{
				Keys: bson.D{{Key: "formId", Value: 1}, {Key: "userId", Value: 1}},
				Options: options.Index().
					SetName("responses_submitted_key").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "submitted"}),
			},
		},
	}
	for coll, models := range indexes {
		if _, err := db.collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

// withTransaction runs fn in a multi-document transaction. It needs a replica set.
func (db *DB) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := db.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// sortBy maps orderings onto document fields, newest first when none apply.
func sortBy(ordering []core.DBOrdering, fields map[string]string) bson.D {
	sort := bson.D{}
	for _, ord := range ordering {
		if fld, ok := fields[ord.Field]; ok {
			dir := -1
			if ord.Ascending {
				dir = 1
			}
			sort = append(sort, bson.E{Key: fld, Value: dir})
		}
	}
	if len(sort) == 0 {
		sort = bson.D{{Key: "createdAt", Value: -1}}
	}
	return sort
}
