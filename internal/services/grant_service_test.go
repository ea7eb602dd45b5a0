package services

import (
	"sync"
	"testing"
	"time"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
)

type stubGrantStore struct {
	mu      sync.Mutex
	forms   map[string]*forms.FormDefinition
	clients map[string]*Client
	users   map[string]*User
	grants  map[string]*FormAccessGrant
	audit   []AuditEntry
}

func newStubGrantStore() *stubGrantStore {
	return &stubGrantStore{
		forms:   map[string]*forms.FormDefinition{},
		clients: map[string]*Client{},
		users:   map[string]*User{},
		grants:  map[string]*FormAccessGrant{},
	}
}

func (s *stubGrantStore) GetForm(id string) (*forms.FormDefinition, error) { return s.forms[id], nil }
func (s *stubGrantStore) GetClient(id string) (*Client, error)             { return s.clients[id], nil }
func (s *stubGrantStore) GetUser(id string) (*User, error)                 { return s.users[id], nil }
func (s *stubGrantStore) AddGrant(g *FormAccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grants[g.Token] = &cp
	return nil
}
func (s *stubGrantStore) GetGrantByToken(token string) (*FormAccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.grants[token]
	if g == nil {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}
func (s *stubGrantStore) CompleteGrant(g *FormAccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.grants[g.Token]
	if cur == nil {
		return NewNotFoundError("grant not found")
	}
	if cur.IsCompleted {
		return ErrGrantCompleted
	}
	cp := *g
	s.grants[g.Token] = &cp
	return nil
}
func (s *stubGrantStore) AddAudit(e AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
}

func grantFixture(t *testing.T) (*GrantService, *stubGrantStore) {
	t.Helper()
	store := newStubGrantStore()
	f := &forms.FormDefinition{
		ID:             "f1",
		Title:          "Questionnaire",
		ExpirationDays: 10,
		Fields: []forms.FieldDefinition{
			{Label: "Nom", Type: forms.FieldText, Required: true},
			{Label: "Pièces", Type: forms.FieldFile},
		},
	}
	if err := forms.CompileForm(f); err != nil {
		t.Fatalf("compile: %v", err)
	}
	store.forms["f1"] = f
	store.clients["c1"] = &Client{ID: "c1", Name: "SARL Dupont"}
	store.users["u1"] = &User{ID: "u1", Name: "Cabinet Martin", Role: "comptable"}

	svc := NewGrantService(store)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	svc.tokenGen = func() string { return "TOKEN1" }
	return svc, store
}

func TestIssueGrantLifecycle(t *testing.T) {
	svc, store := grantFixture(t)
	g, err := svc.IssueGrant("f1", "c1", "u1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if g.Token != "TOKEN1" {
		t.Errorf("token = %q", g.Token)
	}
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !g.ExpirationDate.Equal(want) {
		t.Errorf("expiration = %v, want %v", g.ExpirationDate, want)
	}
	if g.IsCompleted {
		t.Errorf("fresh grant must not be completed")
	}
	if len(store.audit) != 1 || store.audit[0].Action != "issue_grant" {
		t.Errorf("audit = %+v", store.audit)
	}
}

func TestIssueGrantUnknownReferences(t *testing.T) {
	svc, _ := grantFixture(t)
	if _, err := svc.IssueGrant("nope", "c1", "u1"); err == nil {
		t.Errorf("unknown form must fail")
	}
	if _, err := svc.IssueGrant("f1", "nope", "u1"); err == nil {
		t.Errorf("unknown client must fail")
	}
	if _, err := svc.IssueGrant("", "c1", "u1"); err == nil {
		t.Errorf("blank ids must fail")
	}
}

func TestResolveGrant(t *testing.T) {
	svc, _ := grantFixture(t)
	if _, err := svc.IssueGrant("f1", "c1", "u1"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	view, err := svc.ResolveGrant("TOKEN1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if view.ClientName != "SARL Dupont" || view.ComptableName != "Cabinet Martin" {
		t.Errorf("names not resolved: %+v", view)
	}
	if view.Form.ID != "f1" || view.IsCompleted || view.Existing != nil {
		t.Errorf("unexpected view: %+v", view)
	}

	if _, err := svc.ResolveGrant("unknown"); err == nil {
		t.Errorf("unknown token must resolve to not found")
	}
	if se, ok := AsServiceError(mustErr(t, svc, " ")); !ok || se.Code != ErrorNotFound {
		t.Errorf("blank token must be not_found")
	}
}

func mustErr(t *testing.T, svc *GrantService, token string) error {
	t.Helper()
	_, err := svc.ResolveGrant(token)
	if err == nil {
		t.Fatalf("expected error for token %q", token)
	}
	return err
}

func TestCompleteGrantValidatesServerSide(t *testing.T) {
	svc, _ := grantFixture(t)
	_, _ = svc.IssueGrant("f1", "c1", "u1")

	fieldErrs, err := svc.CompleteGrant("TOKEN1", forms.ResponseSet{}, nil, SubmissionMeta{})
	if err == nil {
		t.Fatalf("empty required field must be rejected")
	}
	if fieldErrs["Nom"] != "Nom est obligatoire" {
		t.Errorf("field errors = %v", fieldErrs)
	}
	// Rejected submissions must not complete the grant.
	view, _ := svc.ResolveGrant("TOKEN1")
	if view.IsCompleted {
		t.Fatalf("grant completed by a rejected submission")
	}
}

func TestCompleteGrantOnce(t *testing.T) {
	svc, store := grantFixture(t)
	_, _ = svc.IssueGrant("f1", "c1", "u1")

	responses := forms.ResponseSet{"Nom": "Dupont"}
	if _, err := svc.CompleteGrant("TOKEN1", responses, nil, SubmissionMeta{IPAddress: "203.0.113.9", UserAgent: "Mozilla/5.0"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	g := store.grants["TOKEN1"]
	if !g.IsCompleted || g.CompletedAt == nil {
		t.Fatalf("grant not marked completed: %+v", g)
	}
	if g.SubmittedFrom != "203.0.113.9" {
		t.Errorf("client meta not recorded: %+v", g)
	}

	if _, err := svc.CompleteGrant("TOKEN1", responses, nil, SubmissionMeta{}); err == nil {
		t.Fatalf("second completion must conflict")
	} else if se, ok := AsServiceError(err); !ok || se.Code != ErrorConflict {
		t.Errorf("want conflict, got %v", err)
	}

	view, _ := svc.ResolveGrant("TOKEN1")
	if view.Existing == nil || view.Existing.Responses["Nom"] != "Dupont" {
		t.Errorf("existing response missing from resolved view: %+v", view.Existing)
	}
}

func TestCompleteGrantRacingSubmissions(t *testing.T) {
	svc, store := grantFixture(t)
	_, _ = svc.IssueGrant("f1", "c1", "u1")

	const submitters = 64
	results := make(chan error, submitters)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < submitters; i++ {
		go func() {
			start.Wait()
			_, err := svc.CompleteGrant("TOKEN1", forms.ResponseSet{"Nom": "Dupont"}, nil, SubmissionMeta{})
			results <- err
		}()
	}
	start.Done()

	completed := 0
	for i := 0; i < submitters; i++ {
		err := <-results
		if err == nil {
			completed++
			continue
		}
		if se, ok := AsServiceError(err); !ok || se.Code != ErrorConflict {
			t.Errorf("want conflict for losing submission, got %v", err)
		}
	}
	if completed != 1 {
		t.Fatalf("grant completed %d times, want exactly 1", completed)
	}
	if g := store.grants["TOKEN1"]; !g.IsCompleted {
		t.Fatalf("grant not marked completed")
	}
}

func TestCompleteGrantExpired(t *testing.T) {
	svc, _ := grantFixture(t)
	_, _ = svc.IssueGrant("f1", "c1", "u1")
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }

	_, err := svc.CompleteGrant("TOKEN1", forms.ResponseSet{"Nom": "Dupont"}, nil, SubmissionMeta{})
	if se, ok := AsServiceError(err); !ok || se.Code != ErrorForbidden {
		t.Fatalf("want forbidden for expired link, got %v", err)
	}
}

func TestCompleteGrantKeepsAttachmentNamesOnly(t *testing.T) {
	svc, store := grantFixture(t)
	_, _ = svc.IssueGrant("f1", "c1", "u1")
	files := map[string][]forms.FileAttachment{
		"Pièces": {{Name: "bilan.pdf", Size: 1024}},
	}
	if _, err := svc.CompleteGrant("TOKEN1", forms.ResponseSet{"Nom": "Dupont"}, files, SubmissionMeta{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	g := store.grants["TOKEN1"]
	if len(g.AttachmentNames["Pièces"]) != 1 || g.AttachmentNames["Pièces"][0] != "bilan.pdf" {
		t.Errorf("attachment names = %v", g.AttachmentNames)
	}
}
