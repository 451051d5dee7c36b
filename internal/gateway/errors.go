package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// ErrRedirecting is returned instead of a result when the session turned out
// to be invalid. Logout and navigation have already happened; callers should
// drop the operation silently.
var ErrRedirecting = errors.New("session invalid: redirecting to login")

// Kind classifies a failed dispatch.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindSessionInvalid
	KindValidation
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindSessionInvalid:
		return "session_invalid"
	case KindValidation:
		return "validation"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// FieldError is one entry of the backend error envelope.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Errors []FieldError `json:"errors"`
}

// Error is the typed failure returned by the gateway.
type Error struct {
	Kind   Kind
	Status int // HTTP status, 0 for network failures
	Fields []FieldError
	Err    error // underlying cause, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %v", e.Err)
	case KindValidation:
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		return fmt.Sprintf("validation failed (%d): %s", e.Status, strings.Join(parts, "; "))
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s error (%d): %v", e.Kind, e.Status, e.Err)
		}
		return fmt.Sprintf("%s error (%d %s)", e.Kind, e.Status, http.StatusText(e.Status))
	}
}

func (e *Error) Unwrap() error { return e.Err }

// FieldErrors maps field names to messages for form display.
func (e *Error) FieldErrors() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

// KindOf returns the Kind of err, or 0 when err is not a gateway error.
func KindOf(err error) Kind {
	if errors.Is(err, ErrRedirecting) {
		return KindSessionInvalid
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool { return KindOf(err) == KindNetwork }

// parseFailure turns a non-ok response into a tagged outcome. sessionInvalid
// is true for 401/403 or any envelope entry on the "token" field.
func parseFailure(status int, body []byte) (fields []FieldError, sessionInvalid bool) {
	var env envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		fields = env.Errors
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fields, true
	}
	for _, f := range fields {
		if f.Field == "token" {
			return fields, true
		}
	}
	return fields, false
}

func statusError(status int, fields []FieldError) *Error {
	if len(fields) > 0 {
		return &Error{Kind: KindValidation, Status: status, Fields: fields}
	}
	return &Error{Kind: KindStatus, Status: status}
}
