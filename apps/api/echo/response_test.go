package echoapi_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/luna-app/luna/apps/api/echo"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
	testutil "github.com/luna-app/luna/tests"
)

type responseFixture struct {
	*testEnv
	admin, joe, ann user.User
	frm, inactive   form.Form
}

func newResponseFixture(t *testing.T) *responseFixture {
	env := setup(t)
	fx := &responseFixture{testEnv: env}
	fx.admin = testutil.CreateUser(t, env.usrRepo, "Admin", "admin@luna.dev", "", user.RoleAdmin, true)
	fx.joe = testutil.CreateUser(t, env.usrRepo, "Joe", "joe@luna.dev", "", user.RoleUser, true)
	fx.ann = testutil.CreateUser(t, env.usrRepo, "Ann", "ann@luna.dev", "", user.RoleUser, true)
	fx.frm = testutil.CreateForm(t, env.formRepo, fx.admin, "Survey", true,
		testutil.Field(form.TypeText, "Name", true),
		testutil.Field(form.TypeSelect, "Color", false, "red", "blue"),
	)
	fx.inactive = testutil.CreateForm(t, env.formRepo, fx.admin, "Closed", false,
		testutil.Field(form.TypeText, "Name", true),
	)
	return fx
}

func (fx *responseFixture) body(status string, values ...string) []byte {
	var flds []string
	for i := 0; i+1 < len(values); i += 2 {
		flds = append(flds, `{"fieldId": "`+values[i]+`", "value": "`+values[i+1]+`"}`)
	}
	b := `{"fields": [` + strings.Join(flds, ", ") + `]`
	if status != "" {
		b += `, "status": "` + status + `"`
	}
	return []byte(b + `}`)
}

func Test_responseApi_create(t *testing.T) {
	fx := newResponseFixture(t)
	nameID, colorID := fx.frm.Fields[0].ID, fx.frm.Fields[1].ID
	joeToken := getToken(t, fx.conf, fx.joe)
	path := "/api/forms/" + fx.frm.ID + "/responses"

	tests := []httpTest{
		{name: "auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "unknown form", path: "/api/forms/unknown/responses", token: joeToken, body: fx.body(""),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "form not found"}),
		},
		{
			name: "inactive form", path: "/api/forms/" + fx.inactive.ID + "/responses", token: joeToken, body: fx.body(""),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "form not found"}),
		},
		{
			name: "invalid status", path: path, token: joeToken, body: fx.body("done"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"status": "status must be one of draft, submitted"}),
		},
		{
			name: "unknown field", path: path, token: joeToken, body: fx.body("", "lol", "x"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"lol": "unknown field"}),
		},
		{
			name: "missing required fields", path: path, token: joeToken, body: fx.body("submitted", nameID, "", colorID, "red"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, missingFields("Name")),
		},
		{name: "draft may skip required fields", path: path, token: joeToken, body: fx.body("", colorID, "red"), wantCode: http.StatusCreated},
		{name: "submit", path: path, token: joeToken, body: fx.body("submitted", nameID, "Joe"), wantCode: http.StatusCreated},
		{
			name: "submit twice", path: path, token: joeToken, body: fx.body("submitted", nameID, "Joe"),
			wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: response.ErrAlreadySubmitted.Error()}),
		},
		{name: "another draft is fine", path: path, token: joeToken, body: fx.body("draft", nameID, "Joe"), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			checkCodeAndData(t, tt, fx.do(tt))
		})
	}

	resps, err := fx.respRepo.QueryResponses(context.Background(), response.QueryFilter{FormID: fx.frm.ID})
	require.NoError(t, err)
	assert.Len(t, resps, 3)

	// the form creator is told about the submission
	sent := fx.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, fx.admin.Email, sent[0].To[0].Address)
	assert.Equal(t, "response_submitted", sent[0].TemplateName)
}

func Test_responseApi_create_repeatedLabels(t *testing.T) {
	fx := newResponseFixture(t)
	guests := testutil.CreateForm(t, fx.formRepo, fx.admin, "Guests", true,
		testutil.Field(form.TypeText, "Name", true),
		testutil.Field(form.TypeText, "Name", true),
	)
	path := "/api/forms/" + guests.ID + "/responses"
	joeToken := getToken(t, fx.conf, fx.joe)

	tests := []httpTest{
		{
			name: "both missing", path: path, token: joeToken, body: fx.body("submitted"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, missingFields("Name", "Name")),
		},
		{
			name: "one missing", path: path, token: joeToken, body: fx.body("submitted", guests.Fields[0].ID, "Joe"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, missingFields("Name")),
		},
		{
			name: "both given", path: path, token: joeToken, wantCode: http.StatusCreated,
			body: fx.body("submitted", guests.Fields[0].ID, "Joe", guests.Fields[1].ID, "Ann"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			checkCodeAndData(t, tt, fx.do(tt))
		})
	}
}

func Test_responseApi_query(t *testing.T) {
	fx := newResponseFixture(t)
	nameID := fx.frm.Fields[0].ID
	joeResp := testutil.CreateResponse(t, fx.respRepo, fx.frm, fx.joe, response.StatusSubmitted,
		response.FieldValue{FieldID: nameID, Value: "Joe"})
	annResp := testutil.CreateResponse(t, fx.respRepo, fx.frm, fx.ann, response.StatusDraft)
	path := "/api/forms/" + fx.frm.ID + "/responses"

	tests := []httpTest{
		{name: "auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "users see their own", path: path, token: getToken(t, fx.conf, fx.joe), wantData: marshallList(t, joeResp)},
		{name: "nothing yet", path: "/api/forms/" + fx.inactive.ID + "/responses", token: getToken(t, fx.conf, fx.joe), wantData: marshallList(t)},
		{
			name: "other users' response is not found", path: "/api/forms/responses/" + annResp.ID, token: getToken(t, fx.conf, fx.joe),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "response not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, fx.do(tt))
		})
	}

	t.Run("admins see every response", func(t *testing.T) {
		rec := fx.do(httpTest{path: path, token: getToken(t, fx.conf, fx.admin)})
		require.Equal(t, http.StatusOK, rec.Code)
		var resps []response.Response
		decode(t, rec, &resps)
		assert.Len(t, resps, 2)
	})

	t.Run("single response nests its form", func(t *testing.T) {
		rec := fx.do(httpTest{path: "/api/forms/responses/" + joeResp.ID, token: getToken(t, fx.conf, fx.joe)})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp response.Response
		decode(t, rec, &resp)
		assert.Equal(t, joeResp.ID, resp.ID)
		require.NotNil(t, resp.Form)
		assert.Equal(t, fx.frm.ID, resp.Form.ID)
		assert.Len(t, resp.Form.Fields, 2)
		require.Len(t, resp.Fields, 1)
		assert.Equal(t, "Joe", resp.Fields[0].Value)
	})
}

func Test_responseApi_update(t *testing.T) {
	fx := newResponseFixture(t)
	nameID := fx.frm.Fields[0].ID
	draft := testutil.CreateResponse(t, fx.respRepo, fx.frm, fx.joe, response.StatusDraft)
	submitted := testutil.CreateResponse(t, fx.respRepo, fx.frm, fx.ann, response.StatusSubmitted,
		response.FieldValue{FieldID: nameID, Value: "Ann"})
	closed := testutil.CreateResponse(t, fx.respRepo, fx.inactive, fx.joe, response.StatusDraft)
	joeToken := getToken(t, fx.conf, fx.joe)
	adminToken := getToken(t, fx.conf, fx.admin)

	tests := []httpTest{
		{
			name: "someone else's", path: "/api/forms/responses/" + submitted.ID, token: joeToken, body: fx.body(""),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "response not found"}),
		},
		{
			name: "inactive form", path: "/api/forms/responses/" + closed.ID, token: joeToken, body: fx.body(""),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{name: "admin edits inactive form response", path: "/api/forms/responses/" + closed.ID, token: adminToken, body: fx.body("")},
		{
			name: "submitted is frozen for its owner", path: "/api/forms/responses/" + submitted.ID, token: getToken(t, fx.conf, fx.ann),
			body: fx.body("", nameID, "Annie"), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "missing required fields", path: "/api/forms/responses/" + draft.ID, token: joeToken, body: fx.body("submitted"),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, missingFields("Name")),
		},
		{name: "save draft", path: "/api/forms/responses/" + draft.ID, token: joeToken, body: fx.body("", nameID, "Jo")},
		{name: "submit draft", path: "/api/forms/responses/" + draft.ID, token: joeToken, body: fx.body("submitted", nameID, "Joe")},
		{name: "admin reopens submission", path: "/api/forms/responses/" + submitted.ID, token: adminToken, body: fx.body("draft", nameID, "Ann")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPut
			checkCodeAndData(t, tt, fx.do(tt))
		})
	}

	stored, err := fx.respRepo.GetResponse(context.Background(), response.GetFilter{ID: draft.ID})
	require.NoError(t, err)
	assert.Equal(t, response.StatusSubmitted, stored.Status)
	require.Len(t, stored.Fields, 1)
	assert.Equal(t, "Joe", stored.Fields[0].Value)

	stored, err = fx.respRepo.GetResponse(context.Background(), response.GetFilter{ID: submitted.ID})
	require.NoError(t, err)
	assert.Equal(t, response.StatusDraft, stored.Status)
}

func Test_responseApi_destroy(t *testing.T) {
	fx := newResponseFixture(t)
	draft := testutil.CreateResponse(t, fx.respRepo, fx.frm, fx.joe, response.StatusDraft)
	submitted := testutil.CreateResponse(t, fx.respRepo, fx.frm, fx.ann, response.StatusSubmitted,
		response.FieldValue{FieldID: fx.frm.Fields[0].ID, Value: "Ann"})
	success := marshallObj(t, echoapi.SuccessResponse{Success: true})

	tests := []httpTest{
		{name: "someone else's", path: "/api/forms/responses/" + draft.ID, token: getToken(t, fx.conf, fx.ann), wantCode: http.StatusNotFound},
		{name: "submitted by owner", path: "/api/forms/responses/" + submitted.ID, token: getToken(t, fx.conf, fx.ann), wantCode: http.StatusForbidden},
		{name: "draft by owner", path: "/api/forms/responses/" + draft.ID, token: getToken(t, fx.conf, fx.joe), wantData: success},
		{name: "already deleted", path: "/api/forms/responses/" + draft.ID, token: getToken(t, fx.conf, fx.joe), wantCode: http.StatusNotFound},
		{name: "submitted by admin", path: "/api/forms/responses/" + submitted.ID, token: getToken(t, fx.conf, fx.admin), wantData: success},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodDelete
			checkCodeAndData(t, tt, fx.do(tt))
		})
	}
}

func Test_metrics(t *testing.T) {
	fx := newResponseFixture(t)
	body := fx.body("submitted", fx.frm.Fields[0].ID, "Joe")
	rec := fx.do(httpTest{
		method: http.MethodPost, path: "/api/forms/" + fx.frm.ID + "/responses",
		token: getToken(t, fx.conf, fx.joe), body: body,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = fx.do(httpTest{path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	metrics := rec.Body.String()
	assert.Contains(t, metrics, `luna_form_responses_submitted_total{form="`+fx.frm.ID+`"} 1`)
	assert.Contains(t, metrics, "luna_http_requests_total")
}
