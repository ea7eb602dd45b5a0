package services

import (
	"time"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
)

type FormStore interface {
	AddForm(ownerID string, f *forms.FormDefinition) error
	GetForm(id string) (*forms.FormDefinition, error)
	ListForms(ownerID string) ([]*forms.FormDefinition, error)
	AddAudit(entry AuditEntry)
}

// FormService owns form definition ingestion. Every definition passes
// forms.CompileForm here, so configuration errors (bad regex, choice field
// without options) surface when a comptable saves the form, never while a
// client is filling it in.
type FormService struct {
	store FormStore
	now   func() time.Time
	idGen func() string
}

func NewFormService(store FormStore) *FormService {
	return &FormService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: func() string { return "f" + ShortID(8) },
	}
}

func (s *FormService) CreateForm(ownerID string, def *forms.FormDefinition) (*forms.FormDefinition, error) {
	if ownerID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	if def == nil {
		return nil, NewInvalidError("form definition required")
	}
	if def.ID == "" {
		def.ID = s.idGen()
	}
	if err := forms.CompileForm(def); err != nil {
		return nil, NewInvalidError(err.Error())
	}
	if err := s.store.AddForm(ownerID, def); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: ownerID, Action: "create_form", Target: def.ID})
	return def, nil
}

func (s *FormService) GetForm(id string) (*forms.FormDefinition, error) {
	if id == "" {
		return nil, NewInvalidError("form id required")
	}
	f, err := s.store.GetForm(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, NewNotFoundError("form not found")
	}
	return f, nil
}

func (s *FormService) ListForms(ownerID string) ([]*forms.FormDefinition, error) {
	if ownerID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	return s.store.ListForms(ownerID)
}
