package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// User is a practice-side account (admin or comptable) or a client login.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	PassHash  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is an accounting client a comptable manages and issues forms to.
type Client struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	ComptableID string `json:"comptable_id,omitempty"`
}

// FormAccessGrant is the server-side record behind a disposable link: one
// client, one form, one completion. Clients only ever read it through the
// token and trigger its completion by submitting.
type FormAccessGrant struct {
	ID              string                  `json:"id"`
	Token           string                  `json:"token"`
	FormID          string                  `json:"form_id"`
	ClientID        string                  `json:"client_id"`
	ComptableID     string                  `json:"comptable_id"`
	ExpirationDate  time.Time               `json:"expiration_date"`
	IsCompleted     bool                    `json:"is_completed"`
	CreatedAt       time.Time               `json:"created_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	Responses       forms.ResponseSet       `json:"responses,omitempty"`
	AttachmentNames map[string][]string     `json:"attachment_names,omitempty"`
	SubmittedFrom   string                  `json:"submitted_from,omitempty"`
	SubmittedAgent  string                  `json:"submitted_agent,omitempty"`
}

// SubmissionMeta is the client metadata recorded with a completion.
type SubmissionMeta struct {
	IPAddress string
	UserAgent string
}

type AuditEntry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}

// ShortID returns the first n hex characters of a fresh UUID.
func ShortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
