package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/luna-app/luna/apps/api/echo"
	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
	emailsvc "github.com/luna-app/luna/services/email"
	logsvc "github.com/luna-app/luna/services/logger"
	inmemdb "github.com/luna-app/luna/storage/database/inmem"
	testutil "github.com/luna-app/luna/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testEnv struct {
	conf     *core.Config
	app      *echoapi.Server
	mailSvc  *emailsvc.ConsoleServiceMock
	usrRepo  user.Repository
	formRepo form.Repository
	respRepo response.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, "api", conf)

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		conf:     conf,
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
		usrRepo:  inmemdb.NewUserRepository(db),
		formRepo: inmemdb.NewFormRepository(db),
		respRepo: inmemdb.NewResponseRepository(db),
	}

	// set up services
	validate := testutil.NewValidator()
	usrSvc := user.NewService(env.usrRepo, env.mailSvc, conf)
	formSvc := form.NewService(env.formRepo, validate)
	respSvc := response.NewService(response.Deps{
		Repo:     env.respRepo,
		Forms:    env.formRepo,
		Users:    usrSvc,
		MailSvc:  env.mailSvc,
		Logger:   logger,
		Conf:     conf,
		Validate: validate,
	})

	// set up server
	env.app = echoapi.NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&echoapi.Deps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			FormSvc:     formSvc,
			ResponseSvc: respSvc,
			Validate:    validate,
			Translator:  core.NewTranslator(),
		},
	)
	return env
}

func (env *testEnv) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

// missingFields is the body of a submission lacking required fields.
func missingFields(labels ...string) echo.Map {
	return echo.Map{"error": response.ErrMissingRequiredFields.Error(), "fields": labels}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, conf), conf)
	require.NoError(t, err)
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	return marshallObj(t, objs)
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code)
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
