package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/user"
)

// orderings use the column names of the SQL schema
var userSortFields = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"is_active":  "isActive",
	"created_at": "createdAt",
	"last_login": "lastLogin",
}

type userDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"`
	Role         string     `bson:"role"`
	IsActive     bool       `bson:"isActive"`
	PasswordHash []byte     `bson:"passwordHash"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
	LastLogin    *time.Time `bson:"lastLogin,omitempty"`
}

func newUserDoc(usr user.User) userDoc {
	doc := userDoc{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
	if !usr.LastLogin.IsZero() {
		doc.LastLogin = &usr.LastLogin
	}
	return doc
}

func (doc userDoc) user() user.User {
	usr := user.User{
		ID:           doc.ID,
		Name:         doc.Name,
		Email:        doc.Email,
		Role:         doc.Role,
		IsActive:     doc.IsActive,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
	if doc.LastLogin != nil {
		usr.LastLogin = doc.LastLogin.UTC()
	}
	return usr
}

type userRepository struct {
	db   *DB
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db, coll: db.collection(usersCollection)}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	filter := bson.M{"email": email}
	if len(excludedUsers) > 0 {
		ids := make([]string, len(excludedUsers))
		for i, usr := range excludedUsers {
			ids[i] = usr.ID
		}
		filter["_id"] = bson.M{"$nin": ids}
	}
	n, err := repo.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return errors.Wrap(err, "checking email")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := repo.coll.InsertOne(ctx, newUserDoc(usr)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			pattern := containsFold(filter.Search)
			query["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
		}
		if filter.Role != "" {
			query["role"] = filter.Role
		}
		if filter.IsActive != nil {
			query["isActive"] = *filter.IsActive
		}
	}

	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(sortBy(ordering, userSortFields)))
	if err != nil {
		return nil, errors.Wrap(err, "finding users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	users := make([]user.User, len(docs))
	for i, doc := range docs {
		users[i] = doc.user()
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var query bson.M
	switch {
	case filter.ID != "":
		query = bson.M{"_id": filter.ID}
	case filter.Email != "":
		query = bson.M{"email": filter.Email}
	default:
		return user.User{}, user.ErrNotFound
	}

	var doc userDoc
	if err := repo.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return doc.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": usr.ID}, newUserDoc(usr))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// DeleteUsersByID removes the users with their responses.
// Users who created a form are kept and the call fails with user.ErrHasForms.
func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return repo.db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		in := bson.M{"$in": ids}

		n, err := repo.db.collection(formsCollection).CountDocuments(sc, bson.M{"createdBy": in}, options.Count().SetLimit(1))
		if err != nil {
			return errors.Wrap(err, "counting forms")
		}
		if n > 0 {
			return user.ErrHasForms
		}

		if _, err = repo.db.collection(responsesCollection).DeleteMany(sc, bson.M{"userId": in}); err != nil {
			return errors.Wrap(err, "deleting responses")
		}
		if _, err = repo.coll.DeleteMany(sc, bson.M{"_id": in}); err != nil {
			return errors.Wrap(err, "deleting users")
		}
		return nil
	})
}

// containsFold matches s literally, ignoring case.
func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}
