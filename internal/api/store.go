package api

import (
	"sync"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/services"
)

// memoryStore backs the portal with process-local state. It satisfies the
// service store interfaces; nothing here survives a restart, durable
// storage belongs to the upstream system of record.
type memoryStore struct {
	mu            sync.RWMutex
	usersByID     map[string]*services.User
	usersByEmail  map[string]*services.User
	clients       map[string]*services.Client
	formsByID     map[string]*forms.FormDefinition
	formOwners    map[string][]string
	grantsByToken map[string]*services.FormAccessGrant
	audit         []services.AuditEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		usersByID:     map[string]*services.User{},
		usersByEmail:  map[string]*services.User{},
		clients:       map[string]*services.Client{},
		formsByID:     map[string]*forms.FormDefinition{},
		formOwners:    map[string][]string{},
		grantsByToken: map[string]*services.FormAccessGrant{},
	}
}

var (
	_ services.AuthStore  = (*memoryStore)(nil)
	_ services.FormStore  = (*memoryStore)(nil)
	_ services.GrantStore = (*memoryStore)(nil)
)

func (s *memoryStore) FindUserByEmail(email string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersByEmail[email], nil
}

func (s *memoryStore) AddUser(u *services.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersByID[u.ID] = u
	s.usersByEmail[u.Email] = u
	return nil
}

func (s *memoryStore) GetUser(id string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersByID[id], nil
}

func (s *memoryStore) AddClient(c *services.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *memoryStore) GetClient(id string) (*services.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients[id], nil
}

func (s *memoryStore) AddForm(ownerID string, f *forms.FormDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formsByID[f.ID] = f
	s.formOwners[ownerID] = append(s.formOwners[ownerID], f.ID)
	return nil
}

func (s *memoryStore) GetForm(id string) (*forms.FormDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.formsByID[id], nil
}

func (s *memoryStore) ListForms(ownerID string) ([]*forms.FormDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*forms.FormDefinition, 0, len(s.formOwners[ownerID]))
	for _, id := range s.formOwners[ownerID] {
		if f := s.formsByID[id]; f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memoryStore) AddGrant(g *services.FormAccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grantsByToken[g.Token] = &cp
	return nil
}

// GetGrantByToken returns a copy so callers never share the stored record.
func (s *memoryStore) GetGrantByToken(token string) (*services.FormAccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.grantsByToken[token]
	if g == nil {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// CompleteGrant re-checks completion under the write lock, so exactly one
// of any number of racing submissions lands.
func (s *memoryStore) CompleteGrant(g *services.FormAccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.grantsByToken[g.Token]
	if cur == nil {
		return services.NewNotFoundError("grant not found")
	}
	if cur.IsCompleted {
		return services.ErrGrantCompleted
	}
	cp := *g
	s.grantsByToken[g.Token] = &cp
	return nil
}

func (s *memoryStore) AddAudit(e services.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
}
