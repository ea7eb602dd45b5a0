package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/authz"
)

type AuthStore interface {
	FindUserByEmail(email string) (*User, error)
	AddUser(u *User) error
}

// TokenSigner issues the JWT carried by practice users; the role claim is
// what the route guard feeds to the authorization engine.
type TokenSigner func(uid, role, email string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	roles     *authz.Engine
	now       func() time.Time
	idGen     func(prefix string, n int) string
	signToken TokenSigner
	tokenTTL  time.Duration
}

// AuthResult carries the signed token plus the post-login landing page
// chosen by the authorization engine.
type AuthResult struct {
	Token     string
	UserID    string
	Role      string
	Dashboard string
}

func NewAuthService(store AuthStore, roles *authz.Engine, signer TokenSigner) *AuthService {
	return &AuthService{
		store:     store,
		roles:     roles,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     func(prefix string, n int) string { return prefix + ShortID(n) },
		signToken: signer,
		tokenTTL:  30 * 24 * time.Hour,
	}
}

func (s *AuthService) Register(email, password, name, role string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	if !s.roles.KnownRole(role) {
		return nil, NewInvalidError("unknown role")
	}
	existing, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:        s.idGen("u", 7),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      strings.ToLower(strings.TrimSpace(role)),
		PassHash:  hash,
		CreatedAt: s.now(),
	}
	if err := s.store.AddUser(u); err != nil {
		return nil, err
	}
	return s.result(u)
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return s.result(u)
}

func (s *AuthService) result(u *User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Role, u.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		UserID:    u.ID,
		Role:      u.Role,
		Dashboard: s.roles.DefaultDashboard(u.Role),
	}, nil
}

func (s *AuthService) TokenTTL() time.Duration { return s.tokenTTL }
