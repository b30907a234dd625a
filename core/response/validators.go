package response

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
)

var (
	statusTag  = "status"
	statusText = "status must be one of draft, submitted"

	requiredFieldText = "this field is required"

	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrInvalidFields         = errors.New("invalid fields")
)

// InitValidators registers the response validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	switch s := fl.Field().Interface().(type) {
	case Status:
		return s.IsValid()
	case string:
		return Status(s).IsValid()
	}
	return false
}

// checkFieldValues rejects values for fields the form does not have and repeated fields.
func checkFieldValues(frm form.Form, values []FieldValue) error {
	var flds []core.FieldError
	seen := make(map[string]bool, len(values))
	for _, val := range values {
		id := strings.TrimSpace(val.FieldID)
		switch {
		case seen[id]:
			flds = append(flds, core.FieldError{Field: id, Error: "duplicate field"})
		case !hasField(frm, id):
			flds = append(flds, core.FieldError{Field: id, Error: "unknown field"})
		}
		seen[id] = true
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrInvalidFields, flds...)
	}
	return nil
}

// checkRequiredFields fails with ErrMissingRequiredFields, listing every required field
// without a non-empty value. Fields are keyed by id since labels need not be unique.
func checkRequiredFields(frm form.Form, values []FieldValue) error {
	provided := make(map[string]bool, len(values))
	for _, val := range values {
		if val.Value != "" {
			provided[strings.TrimSpace(val.FieldID)] = true
		}
	}

	var missing []core.FieldError
	for _, fld := range frm.RequiredFields() {
		if !provided[fld.ID] {
			missing = append(missing, core.FieldError{Field: fld.ID, Label: fld.Label, Error: requiredFieldText})
		}
	}
	if len(missing) > 0 {
		return core.NewValidationError(ErrMissingRequiredFields, missing...)
	}
	return nil
}

func hasField(frm form.Form, id string) bool {
	_, ok := frm.Field(id)
	return ok
}
