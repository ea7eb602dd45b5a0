package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
)

// ErrGrantCompleted is returned by GrantStore.CompleteGrant when the stored
// grant was already completed by an earlier submission.
var ErrGrantCompleted = errors.New("grant already completed")

// GrantStore persists form access grants. GetGrantByToken hands out a
// private copy, never the stored record. CompleteGrant must check and mark
// under one lock: it persists g as the completed record for its token, or
// returns ErrGrantCompleted leaving the stored record untouched.
type GrantStore interface {
	GetForm(id string) (*forms.FormDefinition, error)
	GetClient(id string) (*Client, error)
	GetUser(id string) (*User, error)
	AddGrant(g *FormAccessGrant) error
	GetGrantByToken(token string) (*FormAccessGrant, error)
	CompleteGrant(g *FormAccessGrant) error
	AddAudit(entry AuditEntry)
}

// GrantView is what a token resolves to: everything the portal page needs
// and nothing it may change directly.
type GrantView struct {
	Form           *forms.FormDefinition
	ClientName     string
	ComptableName  string
	ExpirationDate time.Time
	IsCompleted    bool
	Existing       *forms.ExistingResponse
}

// GrantService issues, resolves and completes form access grants. A grant
// is completed at most once; expiration and completion are enforced here,
// the client-side session only mirrors them.
type GrantService struct {
	store    GrantStore
	now      func() time.Time
	tokenGen func() string
}

func NewGrantService(store GrantStore) *GrantService {
	return &GrantService{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		tokenGen: func() string { return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "") },
	}
}

// IssueGrant creates a disposable link token for (form, client), expiring
// after the form's ExpirationDays.
func (s *GrantService) IssueGrant(formID, clientID, comptableID string) (*FormAccessGrant, error) {
	if formID == "" || clientID == "" || comptableID == "" {
		return nil, NewInvalidError("form_id/client_id/comptable_id required")
	}
	form, err := s.store.GetForm(formID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, NewNotFoundError("form not found")
	}
	if c, err := s.store.GetClient(clientID); err != nil {
		return nil, err
	} else if c == nil {
		return nil, NewNotFoundError("client not found")
	}
	days := form.ExpirationDays
	if days <= 0 {
		days = forms.DefaultExpirationDays
	}
	now := s.now()
	g := &FormAccessGrant{
		ID:             "g" + ShortID(8),
		Token:          s.tokenGen(),
		FormID:         formID,
		ClientID:       clientID,
		ComptableID:    comptableID,
		ExpirationDate: now.Add(time.Duration(days) * 24 * time.Hour),
		CreatedAt:      now,
	}
	if err := s.store.AddGrant(g); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: now, Actor: comptableID, Action: "issue_grant", Target: g.ID, Note: formID})
	return g, nil
}

// ResolveGrant maps a token to its read-only view. Unknown and blank
// tokens are indistinguishable not-found results.
func (s *GrantService) ResolveGrant(token string) (*GrantView, error) {
	g, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	form, err := s.store.GetForm(g.FormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, NewNotFoundError("form not found")
	}
	view := &GrantView{
		Form:           form,
		ExpirationDate: g.ExpirationDate,
		IsCompleted:    g.IsCompleted,
	}
	if c, err := s.store.GetClient(g.ClientID); err == nil && c != nil {
		view.ClientName = c.Name
	}
	if u, err := s.store.GetUser(g.ComptableID); err == nil && u != nil {
		view.ComptableName = u.Name
	}
	if g.IsCompleted && g.Responses != nil {
		view.Existing = &forms.ExistingResponse{Responses: g.Responses}
		if g.CompletedAt != nil {
			view.Existing.DateCompletion = *g.CompletedAt
		}
	}
	return view, nil
}

// CompleteGrant validates and records a submission, marking the grant
// completed exactly once. On validation rejection the first message per
// offending field is returned alongside an invalid error. File bytes are
// not kept, only attachment names.
func (s *GrantService) CompleteGrant(token string, responses forms.ResponseSet, files map[string][]forms.FileAttachment, meta SubmissionMeta) (map[string]string, error) {
	g, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	if g.IsCompleted {
		return nil, NewConflictError("form already completed")
	}
	// g is a copy; the check above is only a fast path. The store repeats
	// it under its write lock when the completion is persisted, so two
	// racing submissions cannot both complete the grant.
	now := s.now()
	if now.After(g.ExpirationDate) {
		return nil, NewForbiddenError("link expired")
	}
	form, err := s.store.GetForm(g.FormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, NewNotFoundError("form not found")
	}
	if errs := forms.ValidateAll(form, responses, files); len(errs) > 0 {
		return errs, NewInvalidError("validation failed")
	}
	g.IsCompleted = true
	g.CompletedAt = &now
	g.Responses = responses
	g.SubmittedFrom = meta.IPAddress
	g.SubmittedAgent = meta.UserAgent
	if len(files) > 0 {
		g.AttachmentNames = map[string][]string{}
		for label, metas := range files {
			for _, m := range metas {
				g.AttachmentNames[label] = append(g.AttachmentNames[label], m.Name)
			}
		}
	}
	if err := s.store.CompleteGrant(g); err != nil {
		if errors.Is(err, ErrGrantCompleted) {
			return nil, NewConflictError("form already completed")
		}
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: now, Actor: "client", Action: "complete_grant", Target: g.ID})
	return nil, nil
}

func (s *GrantService) lookup(token string) (*FormAccessGrant, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewNotFoundError("grant not found")
	}
	g, err := s.store.GetGrantByToken(token)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, NewNotFoundError("grant not found")
	}
	return g, nil
}
