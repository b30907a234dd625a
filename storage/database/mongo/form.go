package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luna-app/luna/core/form"
)

// orderings use the column names of the SQL schema
var formSortFields = map[string]string{
	"title":      "title",
	"is_active":  "isActive",
	"created_at": "createdAt",
	"updated_at": "updatedAt",
}

type fieldDoc struct {
	ID          string   `bson:"id"`
	Type        string   `bson:"type"`
	Label       string   `bson:"label"`
	Description string   `bson:"description,omitempty"`
	Required    bool     `bson:"required"`
	Options     []string `bson:"options,omitempty"`
	Order       int      `bson:"order"`
}

type formDoc struct {
	ID          string     `bson:"_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description,omitempty"`
	IsActive    bool       `bson:"isActive"`
	CreatedBy   string     `bson:"createdBy"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	Fields      []fieldDoc `bson:"fields"`
}

func newFormDoc(frm form.Form) formDoc {
	doc := formDoc{
		ID:          frm.ID,
		Title:       frm.Title,
		Description: frm.Description,
		IsActive:    frm.IsActive,
		CreatedBy:   frm.CreatedBy,
		CreatedAt:   frm.CreatedAt,
		UpdatedAt:   frm.UpdatedAt,
		Fields:      make([]fieldDoc, len(frm.Fields)),
	}
	for i, fld := range frm.Fields {
		doc.Fields[i] = fieldDoc{
			ID:          fld.ID,
			Type:        string(fld.Type),
			Label:       fld.Label,
			Description: fld.Description,
			Required:    fld.Required,
			Options:     fld.Options,
			Order:       fld.Order,
		}
	}
	return doc
}

func (doc formDoc) form() form.Form {
	frm := form.Form{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		IsActive:    doc.IsActive,
		CreatedBy:   doc.CreatedBy,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
	for _, fld := range doc.Fields {
		frm.Fields = append(frm.Fields, form.Field{
			ID:          fld.ID,
			FormID:      doc.ID,
			Type:        form.FieldType(fld.Type),
			Label:       fld.Label,
			Description: fld.Description,
			Required:    fld.Required,
			Options:     fld.Options,
			Order:       fld.Order,
		})
	}
	return frm
}

type formRepository struct {
	db   *DB
	coll *mongo.Collection
}

var _ form.Repository = (*formRepository)(nil) // interface compliance check

func NewFormRepository(db *DB) form.Repository {
	return &formRepository{db: db, coll: db.collection(formsCollection)}
}

func (repo *formRepository) CreateForm(ctx context.Context, frm form.Form) (form.Form, error) {
	if _, err := repo.coll.InsertOne(ctx, newFormDoc(frm)); err != nil {
		return form.Form{}, errors.Wrap(err, "inserting form")
	}
	return frm, nil
}

func (repo *formRepository) QueryForms(ctx context.Context, filter form.QueryFilter) ([]form.Form, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["isActive"] = true
	}
	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(sortBy(filter.Ordering, formSortFields)))
	if err != nil {
		return nil, errors.Wrap(err, "finding forms")
	}
	var docs []formDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding forms")
	}
	forms := make([]form.Form, len(docs))
	for i, doc := range docs {
		forms[i] = doc.form()
	}
	return forms, nil
}

func (repo *formRepository) GetForm(ctx context.Context, id string) (form.Form, error) {
	var doc formDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return form.Form{}, form.ErrNotFound
		}
		return form.Form{}, errors.Wrap(err, "finding form")
	}
	return doc.form(), nil
}

// ReplaceForm swaps the whole document, embedded fields included.
func (repo *formRepository) ReplaceForm(ctx context.Context, frm form.Form) (form.Form, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": frm.ID}, newFormDoc(frm))
	if err != nil {
		return form.Form{}, errors.Wrap(err, "replacing form")
	}
	if res.MatchedCount == 0 {
		return form.Form{}, form.ErrNotFound
	}
	return frm, nil
}

func (repo *formRepository) DeleteForm(ctx context.Context, id string) error {
	return repo.db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := repo.db.collection(responsesCollection).DeleteMany(sc, bson.M{"formId": id}); err != nil {
			return errors.Wrap(err, "deleting responses")
		}
		if _, err := repo.coll.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return errors.Wrap(err, "deleting form")
		}
		return nil
	})
}
