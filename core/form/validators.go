package form

import (
	"html"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/luna-app/luna/core"
)

var (
	policy = bluemonday.StrictPolicy()

	fieldTypeTag  = "fieldtype"
	fieldTypeText = "invalid field type"

	fieldOptionsTag  = "fieldoptions"
	fieldOptionsText = "this field type requires at least one option"
)

// InitValidators registers the form validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(fieldTypeTag, fieldTypeValidation)
	core.RegisterCustomTranslation(validate, translator, fieldTypeTag, fieldTypeText)

	validate.RegisterStructValidation(fieldStructValidation, NewField{})
	core.RegisterCustomTranslation(validate, translator, fieldOptionsTag, fieldOptionsText)
}

// sanitize strips all markup from s and trims it.
// Entities are unescaped for storage, so markup hidden behind them is stripped on the next round.
func sanitize(s string, lower ...bool) string {
	for s != "" {
		clean := html.UnescapeString(policy.Sanitize(s))
		if clean == s {
			break
		}
		s = clean
	}
	return core.CleanString(s, lower...)
}

// Custom Validators

func fieldTypeValidation(fl validator.FieldLevel) bool {
	switch t := fl.Field().Interface().(type) {
	case FieldType:
		return t.IsValid()
	case string:
		return FieldType(t).IsValid()
	}
	return false
}

// fieldStructValidation checks that option-bearing field types come with options.
func fieldStructValidation(sl validator.StructLevel) {
	fld, ok := sl.Current().Interface().(NewField)
	if !ok {
		return
	}
	if fld.Type.HasOptions() && len(fld.Options) == 0 {
		sl.ReportError(fld.Options, "options", "Options", fieldOptionsTag, "")
	}
}
