package forms

import (
	"regexp"
	"time"
)

// FieldType enumerates the supported input kinds. The set is closed:
// ingestion rejects anything else, there is no default branch.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
	FieldPassword FieldType = "password"
)

// fieldTypes is the authoritative membership table used by CompileForm.
var fieldTypes = map[FieldType]bool{
	FieldText: true, FieldEmail: true, FieldTel: true, FieldNumber: true,
	FieldDate: true, FieldTextarea: true, FieldSelect: true, FieldRadio: true,
	FieldCheckbox: true, FieldFile: true, FieldPassword: true,
}

// IsChoice reports whether the type requires a non-empty Options list.
func (t FieldType) IsChoice() bool {
	return t == FieldSelect || t == FieldRadio || t == FieldCheckbox
}

// Rules carries the optional per-field constraints. For file fields Max is
// the attachment count ceiling and MaxLength the per-file byte ceiling.
type Rules struct {
	Min            *float64 `json:"min,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	MinLength      *int     `json:"minLength,omitempty"`
	MaxLength      *int     `json:"maxLength,omitempty"`
	Pattern        string   `json:"pattern,omitempty"`
	PatternMessage string   `json:"patternMessage,omitempty"`

	pattern *regexp.Regexp
}

// FieldDefinition describes one input of a dynamic form. Label doubles as
// the response key and must be unique within a form.
type FieldDefinition struct {
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Rules       *Rules    `json:"validation,omitempty"`
}

// FormDefinition is a backend-authored form. Field order is significant and
// preserved through rendering and submission.
type FormDefinition struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Fields         []FieldDefinition `json:"fields"`
	ExpirationDays int               `json:"expirationDays,omitempty"`
}

// Field returns the definition for label, or nil.
func (f *FormDefinition) Field(label string) *FieldDefinition {
	for i := range f.Fields {
		if f.Fields[i].Label == label {
			return &f.Fields[i]
		}
	}
	return nil
}

// ResponseSet maps field labels to entered values: string for scalar
// fields, []string for checkboxes, string or number for number fields.
type ResponseSet map[string]any

// FileAttachment is the metadata the validation engine sees for one
// attached file. Raw bytes stay with the transport layer.
type FileAttachment struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// ExistingResponse is a prior submission attached to a completed grant.
type ExistingResponse struct {
	Responses      ResponseSet `json:"responses"`
	DateCompletion time.Time   `json:"dateCompletion"`
}
