// Package session drives one visit of the client portal's secure form
// page: resolve an opaque token into a form, collect answers, validate
// them and submit exactly once. A session belongs to a single page visit
// and is never shared.
package session

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
)

// State is the session's position in its lifecycle. NotFound, Expired and
// Completed are terminal; only an explicit Retry can leave NotFound.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateNotFound   State = "not_found"
	StateExpired    State = "expired"
)

// Message keys for the terminal screens, resolved through utils.T by the
// rendering layer.
const (
	MsgInvalidLink      = "form.invalid_link"
	MsgLoadFailed       = "form.load_failed"
	MsgExpired          = "form.expired"
	MsgAlreadyCompleted = "form.already_completed"
	MsgSubmitFailed     = "form.submit_failed"
)

var (
	// ErrFormNotFound is what backends return for unknown or revoked tokens.
	ErrFormNotFound = errors.New("form not found")
	// ErrValidationFailed means local validation rejected the submission;
	// no network call was made.
	ErrValidationFailed = errors.New("validation failed")
	// ErrAlreadyCompleted guards the one-time use of a link.
	ErrAlreadyCompleted = errors.New("form already completed")
	// ErrNotReady is returned for edits or submissions outside Ready.
	ErrNotReady = errors.New("session is not ready")
)

// Grant is the resolved view of a token: the form to fill plus the
// access metadata the backend derived from the link.
type Grant struct {
	Form           *forms.FormDefinition
	ClientName     string
	ComptableName  string
	ExpirationDate time.Time
	IsCompleted    bool
	Existing       *forms.ExistingResponse
}

// Submission is everything sent to the backend on submit.
type Submission struct {
	Responses    forms.ResponseSet
	Files        map[string][]forms.FileAttachment
	FileContents map[string][][]byte
	IPAddress    string
	UserAgent    string
}

// Backend resolves tokens and accepts submissions. Implementations live in
// internal/apiclient; tests use stubs.
type Backend interface {
	FetchForm(ctx context.Context, token string) (*Grant, error)
	SubmitForm(ctx context.Context, token string, sub Submission) error
}

// Session is the state machine for one (token, form) pair. It is owned by
// a single goroutine; Load and Submit are its only blocking operations.
type Session struct {
	backend Backend
	token   string
	now     func() time.Time

	state        State
	grant        *Grant
	responses    forms.ResponseSet
	files        map[string][]forms.FileAttachment
	fileContents map[string][][]byte
	fieldErrors  map[string]string
	sessionErr   string
	messageKey   string
	days         int
	ipAddress    string
	userAgent    string
	closed       bool
}

// New builds a session for token. Load must be called before anything
// else.
func New(backend Backend, token string) *Session {
	return &Session{
		backend:      backend,
		token:        token,
		now:          func() time.Time { return time.Now().UTC() },
		state:        StateLoading,
		responses:    forms.ResponseSet{},
		files:        map[string][]forms.FileAttachment{},
		fileContents: map[string][][]byte{},
		fieldErrors:  map[string]string{},
	}
}

// SetClientMeta records the originating host and user agent forwarded with
// the submission.
func (s *Session) SetClientMeta(ipAddress, userAgent string) {
	s.ipAddress = ipAddress
	s.userAgent = userAgent
}

// Load resolves the token and settles the session into Ready, Completed,
// Expired or NotFound. A failed load stays failed until Retry.
func (s *Session) Load(ctx context.Context) {
	s.state = StateLoading
	if isBlank(s.token) {
		s.fail(MsgInvalidLink)
		return
	}
	grant, err := s.backend.FetchForm(ctx, s.token)
	if s.closed {
		return
	}
	if err != nil {
		if errors.Is(err, ErrFormNotFound) {
			s.fail(MsgInvalidLink)
		} else {
			s.fail(MsgLoadFailed)
		}
		return
	}
	s.grant = grant
	if grant.IsCompleted {
		// One-time links: a completed grant is shown read-only no matter
		// what the expiration date says.
		s.state = StateCompleted
		s.messageKey = MsgAlreadyCompleted
		if grant.Existing != nil {
			s.responses = forms.ResponseSet{}
			for k, v := range grant.Existing.Responses {
				s.responses[k] = v
			}
		}
		return
	}
	now := s.now()
	s.days = daysUntil(now, grant.ExpirationDate)
	if now.After(grant.ExpirationDate) {
		s.state = StateExpired
		s.messageKey = MsgExpired
		return
	}
	s.state = StateReady
}

// Retry re-runs a failed load after an explicit user action. There is no
// automatic retry.
func (s *Session) Retry(ctx context.Context) {
	if s.state != StateNotFound && s.state != StateExpired {
		return
	}
	s.Load(ctx)
}

// SetFieldValue records an answer and clears the field's current error.
// Validation runs only on submit, never per keystroke.
func (s *Session) SetFieldValue(label string, value any) error {
	if s.state != StateReady {
		return ErrNotReady
	}
	s.responses[label] = value
	delete(s.fieldErrors, label)
	return nil
}

// SetFieldFiles records attachments for a file field, metadata and bytes
// index-aligned.
func (s *Session) SetFieldFiles(label string, metas []forms.FileAttachment, contents [][]byte) error {
	if s.state != StateReady {
		return ErrNotReady
	}
	s.files[label] = metas
	s.fileContents[label] = contents
	delete(s.fieldErrors, label)
	return nil
}

// Submit validates every field in declaration order, then sends the
// response set. On validation failure the session keeps Ready and nothing
// goes over the wire; on backend failure it returns to Ready with the
// entered values intact. A Submit while one is already in flight is a
// programming error and panics.
func (s *Session) Submit(ctx context.Context) error {
	switch s.state {
	case StateSubmitting:
		panic("session: Submit called while a submission is in flight")
	case StateCompleted:
		return ErrAlreadyCompleted
	case StateReady:
	default:
		return ErrNotReady
	}

	if errs := forms.ValidateAll(s.grant.Form, s.responses, s.files); len(errs) > 0 {
		s.fieldErrors = errs
		return ErrValidationFailed
	}

	s.state = StateSubmitting
	s.sessionErr = ""
	err := s.backend.SubmitForm(ctx, s.token, Submission{
		Responses:    s.responses,
		Files:        s.files,
		FileContents: s.fileContents,
		IPAddress:    s.ipAddress,
		UserAgent:    s.userAgent,
	})
	if s.closed {
		return nil
	}
	if err != nil {
		s.state = StateReady
		s.sessionErr = err.Error()
		s.messageKey = MsgSubmitFailed
		return err
	}
	s.state = StateCompleted
	s.messageKey = ""
	return nil
}

// Close detaches the session when the page unmounts. The outcome of an
// in-flight operation landing afterwards is discarded.
func (s *Session) Close() { s.closed = true }

func (s *Session) State() State          { return s.state }
func (s *Session) Token() string         { return s.token }
func (s *Session) Grant() *Grant         { return s.grant }
func (s *Session) SessionError() string  { return s.sessionErr }
func (s *Session) MessageKey() string    { return s.messageKey }
func (s *Session) DaysUntilExpiration() int { return s.days }

// Form returns the resolved definition, nil before a successful load.
func (s *Session) Form() *forms.FormDefinition {
	if s.grant == nil {
		return nil
	}
	return s.grant.Form
}

// Responses exposes the current answer set. After Completed it reflects
// the stored submission and must be rendered read-only.
func (s *Session) Responses() forms.ResponseSet { return s.responses }

// FieldError returns the surfaced message for label, empty when valid.
func (s *Session) FieldError(label string) string { return s.fieldErrors[label] }

// FieldErrors returns the whole error map (first message per field).
func (s *Session) FieldErrors() map[string]string { return s.fieldErrors }

// ExpiringSoon reports the ≤3 days warning window. It never blocks
// submission; only an already-passed expiration does.
func (s *Session) ExpiringSoon() bool {
	return s.state == StateReady && s.days <= 3
}

func (s *Session) fail(key string) {
	s.state = StateNotFound
	s.messageKey = key
}

// daysUntil is a ceiling division on whole days; zero or negative values
// are meaningful and kept.
func daysUntil(now, expiration time.Time) int {
	return int(math.Ceil(expiration.Sub(now).Hours() / 24))
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
