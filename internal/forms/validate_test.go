package forms

import (
	"reflect"
	"strings"
	"testing"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestValidateRequiredEmptyValues(t *testing.T) {
	cases := []struct {
		name  string
		field FieldDefinition
		value any
		files []FileAttachment
	}{
		{"nil value", FieldDefinition{Label: "Nom", Type: FieldText, Required: true}, nil, nil},
		{"blank string", FieldDefinition{Label: "Nom", Type: FieldText, Required: true}, "   ", nil},
		{"empty list", FieldDefinition{Label: "Services", Type: FieldCheckbox, Required: true, Options: []string{"a"}}, []string{}, nil},
		{"no files", FieldDefinition{Label: "Bilan", Type: FieldFile, Required: true}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgs := Validate(tc.field, tc.value, tc.files)
			if len(msgs) == 0 {
				t.Fatalf("expected a required violation, got none")
			}
			if !strings.HasPrefix(msgs[0], tc.field.Label) {
				t.Errorf("first message %q does not name the field", msgs[0])
			}
			if !strings.Contains(msgs[0], "obligatoire") {
				t.Errorf("unexpected message %q", msgs[0])
			}
		})
	}
}

func TestValidateOptionalEmptySkipsTypeChecks(t *testing.T) {
	field := FieldDefinition{Label: "Email", Type: FieldEmail}
	if msgs := Validate(field, "", nil); len(msgs) != 0 {
		t.Fatalf("optional empty value must be valid, got %v", msgs)
	}
	if msgs := Validate(field, nil, nil); len(msgs) != 0 {
		t.Fatalf("optional nil value must be valid, got %v", msgs)
	}
}

func TestValidateEmail(t *testing.T) {
	field := FieldDefinition{Label: "Email", Type: FieldEmail}
	if msgs := Validate(field, "a@b.co", nil); len(msgs) != 0 {
		t.Fatalf("well-formed email rejected: %v", msgs)
	}
	msgs := Validate(field, "not-an-email", nil)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one violation, got %v", msgs)
	}
}

func TestValidateTel(t *testing.T) {
	field := FieldDefinition{Label: "Téléphone", Type: FieldTel}
	for _, ok := range []string{"+33 1 23 45 67 89", "(01) 23-45.67", "0123456789"} {
		if msgs := Validate(field, ok, nil); len(msgs) != 0 {
			t.Errorf("%q rejected: %v", ok, msgs)
		}
	}
	for _, bad := range []string{"12a34", "phone", "+33#1"} {
		if msgs := Validate(field, bad, nil); len(msgs) != 1 {
			t.Errorf("%q: expected one violation, got %v", bad, msgs)
		}
	}
}

func TestValidateNumberBounds(t *testing.T) {
	field := FieldDefinition{
		Label: "Effectif",
		Type:  FieldNumber,
		Rules: &Rules{Min: fptr(0), Max: fptr(100)},
	}
	if msgs := Validate(field, "150", nil); len(msgs) != 1 || !strings.Contains(msgs[0], "inférieur ou égal à 100") {
		t.Errorf("150: expected a max violation, got %v", msgs)
	}
	if msgs := Validate(field, "-5", nil); len(msgs) != 1 || !strings.Contains(msgs[0], "supérieur ou égal à 0") {
		t.Errorf("-5: expected a min violation, got %v", msgs)
	}
	if msgs := Validate(field, "50", nil); len(msgs) != 0 {
		t.Errorf("50: expected no violation, got %v", msgs)
	}
	if msgs := Validate(field, float64(50), nil); len(msgs) != 0 {
		t.Errorf("float 50: expected no violation, got %v", msgs)
	}
	if msgs := Validate(field, "abc", nil); len(msgs) != 1 || !strings.Contains(msgs[0], "nombre") {
		t.Errorf("abc: expected a parse violation, got %v", msgs)
	}
}

func TestValidateDate(t *testing.T) {
	field := FieldDefinition{Label: "Clôture", Type: FieldDate}
	if msgs := Validate(field, "2025-12-31", nil); len(msgs) != 0 {
		t.Errorf("ISO date rejected: %v", msgs)
	}
	if msgs := Validate(field, "31/12/2025", nil); len(msgs) != 0 {
		t.Errorf("FR date rejected: %v", msgs)
	}
	if msgs := Validate(field, "pas une date", nil); len(msgs) != 1 {
		t.Errorf("expected one violation, got %v", msgs)
	}
}

func TestValidateFileRules(t *testing.T) {
	field := FieldDefinition{
		Label:    "Justificatifs",
		Type:     FieldFile,
		Required: true,
		Rules:    &Rules{Max: fptr(2), MaxLength: iptr(1024)},
	}
	files := []FileAttachment{
		{Name: "a.pdf", Size: 512},
		{Name: "b.pdf", Size: 2048},
		{Name: "c.pdf", Size: 4096},
	}
	msgs := Validate(field, nil, files)
	if len(msgs) != 2 {
		t.Fatalf("expected count + size violations, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "maximum 2") {
		t.Errorf("missing count violation: %v", msgs)
	}
	if !strings.Contains(msgs[1], "b.pdf, c.pdf") {
		t.Errorf("size violation must list offending names: %v", msgs)
	}
	if got := Validate(field, nil, files[:1]); len(got) != 0 {
		t.Errorf("one small file should pass, got %v", got)
	}
}

func TestValidateStringRules(t *testing.T) {
	field := FieldDefinition{
		Label: "SIRET",
		Type:  FieldText,
		Rules: &Rules{MinLength: iptr(14), MaxLength: iptr(14), Pattern: `^[0-9]+$`, PatternMessage: "SIRET : chiffres uniquement"},
	}
	if err := CompileForm(&FormDefinition{ID: "f", Fields: []FieldDefinition{field}}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	msgs := Validate(field, "abc", nil)
	if len(msgs) != 2 {
		t.Fatalf("expected minLength + pattern violations, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "au moins 14") {
		t.Errorf("missing minLength violation: %v", msgs)
	}
	if msgs[1] != "SIRET : chiffres uniquement" {
		t.Errorf("patternMessage not used: %v", msgs)
	}
	if got := Validate(field, "12345678901234", nil); len(got) != 0 {
		t.Errorf("valid SIRET rejected: %v", got)
	}
}

func TestValidatePatternFallbackMessage(t *testing.T) {
	field := FieldDefinition{Label: "Code", Type: FieldText, Rules: &Rules{Pattern: `^[A-Z]{3}$`}}
	msgs := Validate(field, "abc", nil)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "format invalide") {
		t.Fatalf("expected generic pattern message, got %v", msgs)
	}
}

func TestValidateUncompiledBrokenPatternFailsLoudly(t *testing.T) {
	// A broken pattern that skipped CompileForm must never let a value
	// through silently.
	field := FieldDefinition{Label: "Code", Type: FieldText, Rules: &Rules{Pattern: `([`}}
	msgs := Validate(field, "anything", nil)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "règle de validation invalide") {
		t.Fatalf("expected a loud configuration violation, got %v", msgs)
	}
}

func TestValidateIdempotent(t *testing.T) {
	field := FieldDefinition{
		Label: "Email",
		Type:  FieldEmail,
		Rules: &Rules{MinLength: iptr(30)},
	}
	first := Validate(field, "not-an-email", nil)
	second := Validate(field, "not-an-email", nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validate is not idempotent: %v vs %v", first, second)
	}
	if len(first) != 2 {
		t.Fatalf("expected full violation set, got %v", first)
	}
}

func TestValidateAllFirstMessagePerField(t *testing.T) {
	form := &FormDefinition{
		ID:    "f1",
		Title: "Dossier",
		Fields: []FieldDefinition{
			{Label: "Nom", Type: FieldText, Required: true},
			{Label: "Email", Type: FieldEmail, Required: true, Rules: &Rules{MinLength: iptr(30)}},
			{Label: "Notes", Type: FieldTextarea},
		},
	}
	if err := CompileForm(form); err != nil {
		t.Fatalf("compile: %v", err)
	}
	errs := ValidateAll(form, ResponseSet{"Email": "bad"}, nil)
	if len(errs) != 2 {
		t.Fatalf("expected two offending fields, got %v", errs)
	}
	if errs["Nom"] != "Nom est obligatoire" {
		t.Errorf("unexpected message for Nom: %q", errs["Nom"])
	}
	if !strings.Contains(errs["Email"], "adresse email valide") {
		t.Errorf("Email must carry the first violation only: %q", errs["Email"])
	}
	if _, ok := errs["Notes"]; ok {
		t.Errorf("optional empty field must not appear: %v", errs)
	}
}
