package forms

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultExpirationDays applies when a definition does not set its own.
const DefaultExpirationDays = 30

var (
	errNoFields = errors.New("form has no fields")
	errNoID     = errors.New("form id is required")
)

// CompileForm validates a backend-authored definition and caches the
// compiled pattern of every field. Definitions must pass here before any
// value is validated against them: a bad regex or a choice field without
// options is a configuration error and has to surface at ingestion, not
// while the end user is typing.
func CompileForm(f *FormDefinition) error {
	if f == nil {
		return errors.New("nil form definition")
	}
	if strings.TrimSpace(f.ID) == "" {
		return errNoID
	}
	if len(f.Fields) == 0 {
		return errNoFields
	}
	if f.ExpirationDays <= 0 {
		f.ExpirationDays = DefaultExpirationDays
	}
	seen := map[string]bool{}
	for i := range f.Fields {
		fd := &f.Fields[i]
		if strings.TrimSpace(fd.Label) == "" {
			return fmt.Errorf("field %d: label is required", i)
		}
		if seen[fd.Label] {
			return fmt.Errorf("field %q: duplicate label", fd.Label)
		}
		seen[fd.Label] = true
		if !fieldTypes[fd.Type] {
			return fmt.Errorf("field %q: unknown type %q", fd.Label, fd.Type)
		}
		if fd.Type.IsChoice() && len(fd.Options) == 0 {
			return fmt.Errorf("field %q: type %s requires options", fd.Label, fd.Type)
		}
		if err := compileRules(fd); err != nil {
			return fmt.Errorf("field %q: %w", fd.Label, err)
		}
	}
	return nil
}

func compileRules(fd *FieldDefinition) error {
	r := fd.Rules
	if r == nil {
		return nil
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return fmt.Errorf("minLength %d exceeds maxLength %d", *r.MinLength, *r.MaxLength)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("min %v exceeds max %v", *r.Min, *r.Max)
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
		}
		r.pattern = re
	}
	return nil
}
