package sqlxrepos_test

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
	"github.com/luna-app/luna/storage/database"
	"github.com/luna-app/luna/storage/database/sqlx"
	"github.com/luna-app/luna/tests"
)

type repos struct {
	users     user.Repository
	forms     form.Repository
	responses response.Repository
}

// setup connects to LUNA_TEST_DATABASE_URL, migrates it and empties every table.
func setup(t *testing.T) repos {
	dsn := os.Getenv("LUNA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LUNA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.OpenURL(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	require.NoError(t, database.Migrate(db.DB.DB))
	_, err = db.ExecContext(ctx, `TRUNCATE field_responses, responses, form_fields, forms, "users" CASCADE`)
	require.NoError(t, err)

	return repos{
		users:     sqlxrepos.NewUserRepository(db.DB),
		forms:     sqlxrepos.NewFormRepository(db.DB),
		responses: sqlxrepos.NewResponseRepository(db.DB),
	}
}

func TestUserRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, r.users, "Ann", "ann@test.test", "Pa$$w0rd!", user.RoleAdmin, true)
	testutil.CreateUser(t, r.users, "Bob", "bob@test.test", "", user.RoleUser, false)

	got, err := r.users.GetUser(ctx, user.GetFilter{Email: "ann@test.test"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.NoError(t, got.CheckPassword("Pa$$w0rd!"))
	assert.True(t, got.LastLogin.IsZero())

	_, err = r.users.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.True(t, core.IsNotFound(err))

	assert.Equal(t, user.ErrEmailExists, r.users.CheckEmailUniqueness(ctx, "ann@test.test"))
	assert.NoError(t, r.users.CheckEmailUniqueness(ctx, "ann@test.test", usr))

	inactive := false
	users, err := r.users.QueryUsers(ctx, &user.QueryFilter{IsActive: &inactive}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob", users[0].Name)

	users, err = r.users.QueryUsers(ctx, &user.QueryFilter{Search: "AN"}, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ann", users[0].Name)

	require.NoError(t, r.users.DeleteUsersByID(ctx, usr.ID))
	_, err = r.users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	assert.True(t, core.IsNotFound(err))
}

func TestFormAndResponseRepositories(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, r.users, "Admin", "admin@test.test", "", user.RoleAdmin, true)
	usr := testutil.CreateUser(t, r.users, "User", "user@test.test", "", user.RoleUser, true)
	frm := testutil.CreateForm(
		t, r.forms, admin, "Feedback", true,
		testutil.Field(form.TypeText, "Comment", true),
		testutil.Field(form.TypeSelect, "Mood", false, "good", "bad"),
	)

	got, err := r.forms.GetForm(ctx, frm.ID)
	require.NoError(t, err)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, []string{"good", "bad"}, got.Fields[1].Options)
	assert.Nil(t, got.Fields[0].Options)

	// field replacement
	frm.Fields = frm.Fields[:1]
	frm.Fields[0].Order = 0
	_, err = r.forms.ReplaceForm(ctx, frm)
	require.NoError(t, err)
	got, err = r.forms.GetForm(ctx, frm.ID)
	require.NoError(t, err)
	assert.Len(t, got.Fields, 1)

	frm.IsActive = false
	_, err = r.forms.ReplaceForm(ctx, frm)
	require.NoError(t, err)
	forms, err := r.forms.QueryForms(ctx, form.QueryFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, forms)

	// one submitted response per user and form
	comment := response.FieldValue{FieldID: frm.Fields[0].ID, Value: "hi"}
	sub := testutil.CreateResponse(t, r.responses, frm, usr, response.StatusSubmitted, comment)
	draft := testutil.CreateResponse(t, r.responses, frm, usr, response.StatusDraft)

	found, err := r.responses.HasSubmitted(ctx, frm.ID, usr.ID)
	require.NoError(t, err)
	assert.True(t, found)

	draft.Status = response.StatusSubmitted
	_, err = r.responses.ReplaceResponse(ctx, draft)
	assert.Equal(t, response.ErrAlreadySubmitted, errors.Cause(err))

	_, err = r.responses.GetResponse(ctx, response.GetFilter{ID: sub.ID, UserID: admin.ID})
	assert.True(t, core.IsNotFound(err))
	gotResp, err := r.responses.GetResponse(ctx, response.GetFilter{ID: sub.ID, UserID: usr.ID})
	require.NoError(t, err)
	require.Len(t, gotResp.Fields, 1)
	assert.Equal(t, "hi", gotResp.Fields[0].Value)

	resps, err := r.responses.QueryResponses(ctx, response.QueryFilter{FormID: frm.ID})
	require.NoError(t, err)
	assert.Len(t, resps, 2)

	// form creators are kept, along with everybody in the same call
	assert.Equal(t, user.ErrHasForms, r.users.DeleteUsersByID(ctx, admin.ID, usr.ID))
	_, err = r.users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	_, err = r.forms.GetForm(ctx, frm.ID)
	require.NoError(t, err)

	// deleting the form cascades
	require.NoError(t, r.forms.DeleteForm(ctx, frm.ID))
	_, err = r.responses.GetResponse(ctx, response.GetFilter{ID: sub.ID})
	assert.True(t, core.IsNotFound(err))
	assert.NoError(t, r.users.DeleteUsersByID(ctx, admin.ID))
}
