package user_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/user"
	"github.com/luna-app/luna/storage/database/inmem"
	"github.com/luna-app/luna/tests"
)

type mailSpy struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *mailSpy) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func setup(t *testing.T) (*user.Service, user.Repository, *mailSpy) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mail := new(mailSpy)
	return user.NewService(repo, mail, core.NewTestConfig()), repo, mail
}

func TestNewUser_Validate(t *testing.T) {
	svc, repo, _ := setup(t)
	validate := testutil.NewValidator()
	testutil.CreateUser(t, repo, "Taken", "taken@test.test", "", user.RoleUser, true)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{name: "blank name", nu: user.NewUser{Name: " ", Email: "a@test.test", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"}, wantField: "name"},
		{name: "bad email", nu: user.NewUser{Name: "A", Email: "nope", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"}, wantField: "email"},
		{name: "taken email", nu: user.NewUser{Name: "A", Email: " TAKEN@test.test", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"}, wantField: "email"},
		{name: "bad role", nu: user.NewUser{Name: "A", Email: "a@test.test", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!", Role: "root"}, wantField: "role"},
		{name: "confirm mismatch", nu: user.NewUser{Name: "A", Email: "a@test.test", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd?"}, wantField: "passwordConfirm"},
		{name: "short password", nu: user.NewUser{Name: "A", Email: "a@test.test", Password: "Pa$1", PasswordConfirm: "Pa$1"}, wantField: "password"},
		{name: "numeric password", nu: user.NewUser{Name: "A", Email: "a@test.test", Password: "12345678", PasswordConfirm: "12345678"}, wantField: "password"},
		{name: "simple password", nu: user.NewUser{Name: "A", Email: "a@test.test", Password: "password1", PasswordConfirm: "password1"}, wantField: "password"},
		{name: "similar password", nu: user.NewUser{Name: "Jonathan", Email: "a@test.test", Password: "J0nathan!", PasswordConfirm: "J0nathan!"}, wantField: "password"},
		{name: "valid", nu: user.NewUser{Name: "A", Email: "a@test.test", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(context.Background(), validate, svc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				assert.Equal(t, user.RoleUser, tt.nu.Role)
				return
			}
			var (
				verrs validator.ValidationErrors
				verr  *core.ValidationError
			)
			switch {
			case errors.As(err, &verrs):
				assert.Equal(t, tt.wantField, verrs[0].Field())
			case errors.As(err, &verr):
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			default:
				t.Errorf("Validate() error = %v, want error on %s", err, tt.wantField)
			}
		})
	}
}

func TestService_CreateUpdate(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{Name: "A", Email: "a@test.test", Password: "Pa$$w0rd!"})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, user.RoleUser, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Pa$$w0rd!"))

	inactive := false
	upd, err := svc.Update(ctx, usr.ID, user.UpdateUser{Name: "B", Email: usr.Email, Role: user.RoleAdmin, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "B", upd.Name)
	assert.True(t, upd.IsAdmin())
	assert.False(t, upd.IsActive)
	assert.NoError(t, upd.CheckPassword("Pa$$w0rd!"))

	_, err = svc.Update(ctx, "missing", user.UpdateUser{})
	assert.True(t, core.IsNotFound(err))
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, mail := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "A", "a@test.test", "Pa$$w0rd!", user.RoleUser, true)
	testutil.CreateUser(t, repo, "I", "i@test.test", "Pa$$w0rd!", user.RoleUser, false)

	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "missing@test.test")))
	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "i@test.test")))
	require.NoError(t, svc.RequestPasswordReset(ctx, " A@test.test "))
	require.Len(t, mail.messages, 1)
	assert.Equal(t, "password_reset", mail.messages[0].TemplateName)

	data := mail.messages[0].TemplateData.(map[string]string)
	assert.Equal(t, user.EncodeUID(usr), data["UID"])

	err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: "bad-token", Password: "N3w-Pa$$"})
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))

	require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: data["Token"], Password: "N3w-Pa$$"}))
	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w-Pa$$"))

	// the token dies with the old password
	err = svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: data["Token"], Password: "Other-Pa$$1"})
	assert.True(t, errors.As(err, &verr))
}
