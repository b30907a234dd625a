package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
)

type fieldResponseDoc struct {
	ID        string    `bson:"id"`
	FieldID   string    `bson:"fieldId"`
	Value     string    `bson:"value"`
	CreatedAt time.Time `bson:"createdAt"`
}

type responseDoc struct {
	ID        string             `bson:"_id"`
	FormID    string             `bson:"formId"`
	UserID    string             `bson:"userId"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
	Fields    []fieldResponseDoc `bson:"fields"`
}

func newResponseDoc(resp response.Response) responseDoc {
	doc := responseDoc{
		ID:        resp.ID,
		FormID:    resp.FormID,
		UserID:    resp.UserID,
		Status:    string(resp.Status),
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
		Fields:    make([]fieldResponseDoc, len(resp.Fields)),
	}
	for i, fr := range resp.Fields {
		doc.Fields[i] = fieldResponseDoc{ID: fr.ID, FieldID: fr.FieldID, Value: fr.Value, CreatedAt: fr.CreatedAt}
	}
	return doc
}

func (doc responseDoc) response() response.Response {
	resp := response.Response{
		ID:        doc.ID,
		FormID:    doc.FormID,
		UserID:    doc.UserID,
		Status:    response.Status(doc.Status),
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
		Fields:    make([]response.FieldResponse, len(doc.Fields)),
	}
	for i, fr := range doc.Fields {
		resp.Fields[i] = response.FieldResponse{
			ID:         fr.ID,
			ResponseID: doc.ID,
			FieldID:    fr.FieldID,
			Value:      fr.Value,
			CreatedAt:  fr.CreatedAt.UTC(),
		}
	}
	return resp
}

type responseRepository struct {
	db   *DB
	coll *mongo.Collection
}

var _ response.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *DB) response.Repository {
	return &responseRepository{db: db, coll: db.collection(responsesCollection)}
}

func (repo *responseRepository) CreateResponse(ctx context.Context, resp response.Response) (response.Response, error) {
	n, err := repo.db.collection(formsCollection).CountDocuments(ctx, bson.M{"_id": resp.FormID}, options.Count().SetLimit(1))
	if err != nil {
		return response.Response{}, errors.Wrap(err, "checking form")
	}
	if n == 0 {
		return response.Response{}, form.ErrNotFound
	}
	if _, err = repo.coll.InsertOne(ctx, newResponseDoc(resp)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return response.Response{}, response.ErrAlreadySubmitted
		}
		return response.Response{}, errors.Wrap(err, "inserting response")
	}
	return resp, nil
}

func (repo *responseRepository) QueryResponses(ctx context.Context, filter response.QueryFilter) ([]response.Response, error) {
	query := bson.M{"formId": filter.FormID}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "finding responses")
	}
	var docs []responseDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding responses")
	}
	resps := make([]response.Response, len(docs))
	for i, doc := range docs {
		resps[i] = doc.response()
	}
	return resps, nil
}

func (repo *responseRepository) GetResponse(ctx context.Context, filter response.GetFilter) (response.Response, error) {
	// ownership and existence are checked by the same query
	query := bson.M{"_id": filter.ID}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	var doc responseDoc
	if err := repo.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return response.Response{}, response.ErrNotFound
		}
		return response.Response{}, errors.Wrap(err, "finding response")
	}
	return doc.response(), nil
}

func (repo *responseRepository) HasSubmitted(ctx context.Context, formID, userID string) (bool, error) {
	query := bson.M{"formId": formID, "userId": userID, "status": string(response.StatusSubmitted)}
	n, err := repo.coll.CountDocuments(ctx, query, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "checking submitted responses")
	}
	return n > 0, nil
}

// ReplaceResponse swaps the status and the embedded field responses in one update.
func (repo *responseRepository) ReplaceResponse(ctx context.Context, resp response.Response) (response.Response, error) {
	doc := newResponseDoc(resp)
	update := bson.M{"$set": bson.M{
		"status":    doc.Status,
		"updatedAt": doc.UpdatedAt,
		"fields":    doc.Fields,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated responseDoc
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": resp.ID}, update, opts).Decode(&updated); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return response.Response{}, response.ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return response.Response{}, response.ErrAlreadySubmitted
		}
		return response.Response{}, errors.Wrap(err, "replacing response")
	}
	return updated.response(), nil
}

func (repo *responseRepository) DeleteResponse(ctx context.Context, id string) error {
	if _, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting response")
	}
	return nil
}
