package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/luna-app/luna/apps/api/echo"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
	testutil "github.com/luna-app/luna/tests"
)

func Test_formApi_query(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@luna.dev", "", user.RoleAdmin, true)
	joe := testutil.CreateUser(t, env.usrRepo, "Joe", "joe@luna.dev", "", user.RoleUser, true)
	active := testutil.CreateForm(t, env.formRepo, admin, "Active", true, testutil.Field(form.TypeText, "Name", true))
	inactive := testutil.CreateForm(t, env.formRepo, admin, "Inactive", false, testutil.Field(form.TypeText, "Name", true))

	tests := []httpTest{
		{name: "auth required", path: "/api/forms", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "users only see active forms", path: "/api/forms", token: getToken(t, env.conf, joe), wantData: marshallList(t, active)},
		{name: "user get active", path: "/api/forms/" + active.ID, token: getToken(t, env.conf, joe), wantData: marshallObj(t, active)},
		{
			name: "user get inactive", path: "/api/forms/" + inactive.ID, token: getToken(t, env.conf, joe),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "form not found"}),
		},
		{name: "ordering", path: "/api/forms?ordering=-title", token: getToken(t, env.conf, admin), wantData: marshallList(t, inactive, active)},
		{name: "ordering ascending", path: "/api/forms?ordering=is_active,title", token: getToken(t, env.conf, admin), wantData: marshallList(t, inactive, active)},
		{name: "admin get inactive", path: "/api/forms/" + inactive.ID, token: getToken(t, env.conf, admin), wantData: marshallObj(t, inactive)},
		{
			name: "unknown", path: "/api/forms/unknown", token: getToken(t, env.conf, admin),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "form not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.do(tt))
		})
	}

	t.Run("admins see every form", func(t *testing.T) {
		rec := env.do(httpTest{path: "/api/forms", token: getToken(t, env.conf, admin)})
		require.Equal(t, http.StatusOK, rec.Code)
		var forms []form.Form
		decode(t, rec, &forms)
		assert.Len(t, forms, 2)
	})

	t.Run("wire format", func(t *testing.T) {
		rec := env.do(httpTest{path: "/api/forms/" + active.ID, token: getToken(t, env.conf, joe)})
		require.Equal(t, http.StatusOK, rec.Code)
		var data map[string]interface{}
		decode(t, rec, &data)
		assert.Equal(t, true, data["isActive"])
		assert.Equal(t, admin.ID, data["createdBy"])
		fields := data["fields"].([]interface{})
		require.Len(t, fields, 1)
		fld := fields[0].(map[string]interface{})
		assert.Equal(t, "text", fld["type"])
		assert.Equal(t, "text", fld["inputType"])
		assert.Equal(t, active.ID, fld["formId"])
		assert.Equal(t, []interface{}{}, fld["options"])
	})
}

func Test_formApi_create(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@luna.dev", "", user.RoleAdmin, true)
	joe := testutil.CreateUser(t, env.usrRepo, "Joe", "joe@luna.dev", "", user.RoleUser, true)
	adminToken := getToken(t, env.conf, admin)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "admin required", token: getToken(t, env.conf, joe), body: []byte(`{"title": "Survey"}`),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "invalid data", token: adminToken, body: []byte(`{"title": " <b></b> "}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"title": "this field is required", "fields": "this field is required"}),
		},
		{name: "malformed body", token: adminToken, body: []byte(`{"title": `), wantCode: http.StatusBadRequest},
		{
			name: "unknown field type", token: adminToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"title": "Survey", "fields": [{"type": "slider", "label": "Mood"}]}`),
		},
		{
			name: "select without options", token: adminToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"title": "Survey", "fields": [{"type": "select", "label": "Color"}]}`),
		},
		{
			name: "success", token: adminToken, wantCode: http.StatusCreated,
			body: []byte(`{
				"title": "<script>x</script>Survey",
				"isActive": false,
				"fields": [
					{"type": "TEXT", "label": "Name", "required": true, "options": ["dropped"]},
					{"type": "select", "label": "Color", "options": ["red", "red", "<i>blue</i>"]}
				]
			}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/forms"
			rec := env.do(tt)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusCreated {
				var frm form.Form
				decode(t, rec, &frm)
				assert.NotEmpty(t, frm.ID)
				assert.Equal(t, "Survey", frm.Title)
				assert.False(t, frm.IsActive)
				assert.Equal(t, admin.ID, frm.CreatedBy)
				require.Len(t, frm.Fields, 2)
				assert.Equal(t, form.TypeText, frm.Fields[0].Type)
				assert.Empty(t, frm.Fields[0].Options)
				assert.Equal(t, 0, frm.Fields[0].Order)
				assert.Equal(t, []string{"red", "blue"}, frm.Fields[1].Options)
				assert.Equal(t, 1, frm.Fields[1].Order)
			}
		})
	}
}

func Test_formApi_updateDestroy(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@luna.dev", "", user.RoleAdmin, true)
	joe := testutil.CreateUser(t, env.usrRepo, "Joe", "joe@luna.dev", "", user.RoleUser, true)
	frm := testutil.CreateForm(t, env.formRepo, admin, "Survey", true, testutil.Field(form.TypeText, "Name", true))
	resp := testutil.CreateResponse(t, env.respRepo, frm, joe, response.StatusSubmitted,
		response.FieldValue{FieldID: frm.Fields[0].ID, Value: "Joe"})
	adminToken := getToken(t, env.conf, admin)
	body := []byte(`{"title": "Survey v2", "fields": [{"type": "number", "label": "Age", "required": true}]}`)

	tests := []httpTest{
		{
			name: "admin required", method: http.MethodPut, path: "/api/forms/" + frm.ID, token: getToken(t, env.conf, joe), body: body,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "unknown", method: http.MethodPut, path: "/api/forms/unknown", token: adminToken, body: body,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "form not found"}),
		},
		{
			name: "delete admin required", method: http.MethodDelete, path: "/api/forms/" + frm.ID, token: getToken(t, env.conf, joe),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.do(tt))
		})
	}

	t.Run("update replaces every field", func(t *testing.T) {
		rec := env.do(httpTest{method: http.MethodPut, path: "/api/forms/" + frm.ID, token: adminToken, body: body})
		require.Equal(t, http.StatusOK, rec.Code)
		var updated form.Form
		decode(t, rec, &updated)
		assert.Equal(t, frm.ID, updated.ID)
		assert.Equal(t, "Survey v2", updated.Title)
		assert.True(t, updated.IsActive)
		require.Len(t, updated.Fields, 1)
		assert.Equal(t, "Age", updated.Fields[0].Label)
		assert.NotEqual(t, frm.Fields[0].ID, updated.Fields[0].ID)

		// the submitted response still points at the old field
		stored, err := env.respRepo.GetResponse(context.Background(), response.GetFilter{ID: resp.ID})
		require.NoError(t, err)
		assert.Equal(t, frm.Fields[0].ID, stored.Fields[0].FieldID)
	})

	t.Run("delete cascades and is idempotent", func(t *testing.T) {
		success := marshallObj(t, echoapi.SuccessResponse{Success: true})
		for i := 0; i < 2; i++ {
			tt := httpTest{method: http.MethodDelete, path: "/api/forms/" + frm.ID, token: adminToken, wantData: success}
			checkCodeAndData(t, tt, env.do(tt))
		}
		_, err := env.respRepo.GetResponse(context.Background(), response.GetFilter{ID: resp.ID})
		assert.ErrorIs(t, err, response.ErrNotFound)

		tt := httpTest{path: "/api/forms/" + frm.ID, token: adminToken, wantCode: http.StatusNotFound}
		checkCodeAndData(t, tt, env.do(tt))
	})
}
