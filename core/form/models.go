package form

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/luna-app/luna/core"
)

// FieldType is the variant of a form field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeTextarea FieldType = "textarea"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypeCheckbox FieldType = "checkbox"
	TypeRadio    FieldType = "radio"
)

// fieldKind holds everything that varies with a FieldType.
// Adding a field type means adding one entry to fieldKinds.
type fieldKind struct {
	hasOptions bool
	inputType  string // HTML input hint for the presentation layer
}

var (
	fieldKinds = map[FieldType]fieldKind{
		TypeText:     {inputType: "text"},
		TypeTextarea: {inputType: "textarea"},
		TypeNumber:   {inputType: "number"},
		TypeDate:     {inputType: "date"},
		TypeSelect:   {hasOptions: true, inputType: "select"},
		TypeCheckbox: {inputType: "checkbox"},
		TypeRadio:    {hasOptions: true, inputType: "radio"},
	}

	AllFieldTypes = []FieldType{TypeText, TypeTextarea, TypeNumber, TypeDate, TypeSelect, TypeCheckbox, TypeRadio}
)

func (t FieldType) IsValid() bool {
	_, ok := fieldKinds[t]
	return ok
}

// HasOptions reports whether fields of this type carry a list of options.
func (t FieldType) HasOptions() bool { return fieldKinds[t].hasOptions }

func (t FieldType) InputType() string { return fieldKinds[t].inputType }

// Field is one input slot of a Form.
type Field struct {
	ID          string    `json:"id"`
	FormID      string    `json:"formId"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options"`
	Order       int       `json:"order"`
}

func (f Field) MarshalJSON() ([]byte, error) {
	type field Field
	opts := f.Options
	if opts == nil {
		opts = []string{}
	}
	f.Options = opts
	return json.Marshal(struct {
		field
		InputType string `json:"inputType"`
	}{field(f), f.Type.InputType()})
}

// Form is an ordered collection of Fields. Fields are sorted by Order.
type Form struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
	Fields      []Field   `json:"fields"`
}

// Field returns the field with the given id.
func (frm Form) Field(id string) (Field, bool) {
	for _, fld := range frm.Fields {
		if fld.ID == id {
			return fld, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the required fields in display order.
func (frm Form) RequiredFields() []Field {
	var res []Field
	for _, fld := range frm.Fields {
		if fld.Required {
			res = append(res, fld)
		}
	}
	return res
}

// NewField contains information needed to create a Field.
type NewField struct {
	Type        FieldType `json:"type" validate:"required,fieldtype"`
	Label       string    `json:"label" validate:"required,notblank"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options"`
}

func (nf *NewField) clean() {
	nf.Type = FieldType(sanitize(string(nf.Type), true /* lower */))
	nf.Label = sanitize(nf.Label)
	nf.Description = sanitize(nf.Description)
	if !nf.Type.HasOptions() {
		nf.Options = nil
		return
	}

	seen := make(map[string]bool, len(nf.Options))
	opts := make([]string, 0, len(nf.Options))
	for _, opt := range nf.Options {
		opt = sanitize(opt)
		if opt == "" || seen[opt] {
			continue
		}
		seen[opt] = true
		opts = append(opts, opt)
	}
	nf.Options = opts
}

// NewForm contains information needed to create a Form.
type NewForm struct {
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	IsActive    *bool      `json:"isActive"`
	Fields      []NewField `json:"fields" validate:"required,min=1,dive"`
}

func (nf *NewForm) Validate(validate *validator.Validate) error {
	nf.Title = sanitize(nf.Title)
	nf.Description = sanitize(nf.Description)
	for i := range nf.Fields {
		nf.Fields[i].clean()
	}
	return validate.Struct(nf)
}

// UpdateForm replaces a Form's attributes and its whole field collection.
type UpdateForm struct {
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	IsActive    *bool      `json:"isActive"`
	Fields      []NewField `json:"fields" validate:"required,min=1,dive"`
}

func (uf *UpdateForm) Validate(validate *validator.Validate) error {
	uf.Title = sanitize(uf.Title)
	uf.Description = sanitize(uf.Description)
	for i := range uf.Fields {
		uf.Fields[i].clean()
	}
	return validate.Struct(uf)
}

type QueryFilter struct {
	ActiveOnly bool
	Ordering   []core.DBOrdering // newest first when empty
}
