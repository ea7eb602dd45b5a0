package forms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	telShape   = regexp.MustCompile(`^[0-9+\-().\s]+$`)
)

// dateLayouts accepted for date fields, tried in order.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

// Validate checks one entered value against its field definition and
// returns every violated rule as a human-readable French message, in rule
// order. An empty slice means the value is valid. Callers surface only the
// first message; the full list is still computed so the contract stays
// deterministic.
//
// The function is pure: no state, no side effects, identical inputs yield
// identical output.
func Validate(field FieldDefinition, value any, files []FileAttachment) []string {
	var violations []string

	empty := isEmpty(value)
	if field.Type == FieldFile {
		empty = len(files) == 0
	}
	if empty {
		if field.Required {
			violations = append(violations, field.Label+" est obligatoire")
		}
		// Nothing else to check against an absent value.
		return violations
	}

	switch field.Type {
	case FieldEmail:
		if s, ok := stringValue(value); ok && !emailShape.MatchString(strings.TrimSpace(s)) {
			violations = append(violations, field.Label+" doit être une adresse email valide")
		}
	case FieldTel:
		if s, ok := stringValue(value); ok && !telShape.MatchString(strings.TrimSpace(s)) {
			violations = append(violations, field.Label+" doit être un numéro de téléphone valide")
		}
	case FieldNumber:
		violations = append(violations, checkNumber(field, value)...)
	case FieldDate:
		if s, ok := stringValue(value); ok && !parseableDate(s) {
			violations = append(violations, field.Label+" doit être une date valide")
		}
	case FieldFile:
		violations = append(violations, checkFiles(field, files)...)
	case FieldText, FieldTextarea, FieldSelect, FieldRadio, FieldCheckbox, FieldPassword:
		// No type-specific rule beyond the generic constraints below.
	}

	if s, ok := stringValue(value); ok {
		violations = append(violations, checkStringRules(field, s)...)
	}
	return violations
}

// ValidateAll runs Validate over every field in declaration order and
// returns the first message per offending field, keyed by label. An empty
// map means the whole response set is valid.
func ValidateAll(form *FormDefinition, values ResponseSet, files map[string][]FileAttachment) map[string]string {
	errs := map[string]string{}
	for _, fd := range form.Fields {
		if msgs := Validate(fd, values[fd.Label], files[fd.Label]); len(msgs) > 0 {
			errs[fd.Label] = msgs[0]
		}
	}
	return errs
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// stringValue narrows a response value to its string form. Non-string
// values (numbers, lists) skip string-shaped rules.
func stringValue(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func checkNumber(field FieldDefinition, value any) []string {
	n, ok := numericValue(value)
	if !ok {
		return []string{field.Label + " doit être un nombre"}
	}
	var out []string
	if r := field.Rules; r != nil {
		if r.Min != nil && n < *r.Min {
			out = append(out, field.Label+" doit être supérieur ou égal à "+formatNumber(*r.Min))
		}
		if r.Max != nil && n > *r.Max {
			out = append(out, field.Label+" doit être inférieur ou égal à "+formatNumber(*r.Max))
		}
	}
	return out
}

func checkFiles(field FieldDefinition, files []FileAttachment) []string {
	r := field.Rules
	if r == nil {
		return nil
	}
	var out []string
	if r.Max != nil && float64(len(files)) > *r.Max {
		out = append(out, fmt.Sprintf("%s : maximum %s fichier(s) autorisé(s)", field.Label, formatNumber(*r.Max)))
	}
	if r.MaxLength != nil {
		var oversized []string
		for _, f := range files {
			if f.Size > int64(*r.MaxLength) {
				oversized = append(oversized, f.Name)
			}
		}
		if len(oversized) > 0 {
			out = append(out, fmt.Sprintf("%s : fichier(s) trop volumineux : %s", field.Label, strings.Join(oversized, ", ")))
		}
	}
	return out
}

func checkStringRules(field FieldDefinition, s string) []string {
	r := field.Rules
	if r == nil {
		return nil
	}
	var out []string
	if r.MinLength != nil && len([]rune(s)) < *r.MinLength {
		out = append(out, fmt.Sprintf("%s doit contenir au moins %d caractères", field.Label, *r.MinLength))
	}
	if r.MaxLength != nil && len([]rune(s)) > *r.MaxLength {
		out = append(out, fmt.Sprintf("%s ne doit pas dépasser %d caractères", field.Label, *r.MaxLength))
	}
	if r.Pattern != "" {
		re := r.pattern
		if re == nil {
			// The definition skipped CompileForm. Compile here so a valid
			// pattern still applies; a broken one must fail the value
			// loudly rather than let it through.
			var err error
			re, err = regexp.Compile(r.Pattern)
			if err != nil {
				return append(out, field.Label+" : règle de validation invalide")
			}
		}
		if !re.MatchString(s) {
			msg := r.PatternMessage
			if msg == "" {
				msg = field.Label + " : format invalide"
			}
			out = append(out, msg)
		}
	}
	return out
}

func parseableDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
