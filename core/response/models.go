package response

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
)

// Status is the lifecycle state of a Response.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// FieldResponse is the value given for one form field.
// Values are stored as given, whatever the field type.
type FieldResponse struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"responseId"`
	FieldID    string    `json:"fieldId"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"createdAt"` // UTC
}

// Response is one user's answer set for a form. Fields keep their creation order.
type Response struct {
	ID        string          `json:"id"`
	FormID    string          `json:"formId"`
	UserID    string          `json:"userId"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"` // UTC
	UpdatedAt time.Time       `json:"updatedAt"` // UTC
	Fields    []FieldResponse `json:"fields"`

	// Form is only loaded when a single response is fetched.
	Form *form.Form `json:"form,omitempty"`
}

func (r Response) IsSubmitted() bool { return r.Status == StatusSubmitted }

type FieldValue struct {
	FieldID string `json:"fieldId" validate:"required"`
	Value   string `json:"value"`
}

// NewResponse contains information needed to start a Response. Status defaults to draft.
type NewResponse struct {
	Fields []FieldValue `json:"fields" validate:"dive"`
	Status Status       `json:"status" validate:"omitempty,status"`
}

func (nr *NewResponse) Validate(validate *validator.Validate) error {
	nr.Status = Status(core.CleanString(string(nr.Status), true /* lower */))
	if nr.Status == "" {
		nr.Status = StatusDraft
	}
	return validate.Struct(nr)
}

// UpdateResponse replaces the field values of a Response. An empty Status keeps the current one.
type UpdateResponse struct {
	Fields []FieldValue `json:"fields" validate:"dive"`
	Status Status       `json:"status" validate:"omitempty,status"`
}

func (ur *UpdateResponse) Validate(validate *validator.Validate) error {
	ur.Status = Status(core.CleanString(string(ur.Status), true /* lower */))
	return validate.Struct(ur)
}

type QueryFilter struct {
	FormID string
	UserID string // optional
}

// GetFilter selects a single Response; a non-empty UserID restricts it to that owner.
type GetFilter struct {
	ID     string
	UserID string
}
