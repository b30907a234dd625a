package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
)

// NewValidator returns a validator with every custom tag registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	form.InitValidators(validate, translator)
	response.InitValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Field builds a field definition for CreateForm; ids and order are filled in there.
func Field(typ form.FieldType, label string, required bool, options ...string) form.Field {
	return form.Field{Type: typ, Label: label, Required: required, Options: options}
}

func CreateForm(
	t *testing.T,
	repo form.Repository,
	creator user.User,
	title string,
	isActive bool,
	fields ...form.Field,
) form.Form {
	now := time.Now().UTC()
	frm := form.Form{
		ID:        uuid.NewString(),
		Title:     title,
		IsActive:  isActive,
		CreatedBy: creator.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, fld := range fields {
		fld.ID = uuid.NewString()
		fld.FormID = frm.ID
		fld.Order = i
		frm.Fields = append(frm.Fields, fld)
	}
	frm, err := repo.CreateForm(context.Background(), frm)
	if err != nil {
		t.Fatalf("CreateForm() failed: %v", err)
	}
	return frm
}

// CreateResponse stores a response with one value per (fieldID, value) pair.
func CreateResponse(
	t *testing.T,
	repo response.Repository,
	frm form.Form,
	owner user.User,
	status response.Status,
	values ...response.FieldValue,
) response.Response {
	now := time.Now().UTC()
	resp := response.Response{
		ID:        uuid.NewString(),
		FormID:    frm.ID,
		UserID:    owner.ID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, val := range values {
		resp.Fields = append(resp.Fields, response.FieldResponse{
			ID:         uuid.NewString(),
			ResponseID: resp.ID,
			FieldID:    val.FieldID,
			Value:      val.Value,
			CreatedAt:  now,
		})
	}
	resp, err := repo.CreateResponse(context.Background(), resp)
	if err != nil {
		t.Fatalf("CreateResponse() failed: %v", err)
	}
	return resp
}
