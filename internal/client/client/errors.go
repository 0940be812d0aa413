package client

import (
	"errors"
	"sort"

	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
)

// Failure kinds. Every error returned by HTTPClient matches exactly one of
// them with errors.Is.
var (
	// ErrValidation marks local, pre-network validation failures.
	ErrValidation = models.ErrValidation

	ErrUnavailable         = errors.New("server unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrCredentialsRejected = errors.New("credentials rejected")
	ErrServerValidation    = errors.New("server validation failed")
	ErrChallengeInvalid    = errors.New("verification code invalid or expired")
	ErrUnknown             = errors.New("unexpected server response")
)

// APIError is a backend failure carrying the message meant for the user.
type APIError struct {
	// Kind is one of the sentinel errors above.
	Kind     error
	Endpoint string
	Status   int
	// Message is the single human-readable message; for 422 responses it is
	// the message of the highest-priority failing field.
	Message string
	// Fields holds the full 422 field -> messages mapping.
	Fields map[string][]string
	// Err is the transport or decode cause, if any.
	Err error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FieldNames returns the failing 422 fields in display priority order.
func (e *APIError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return fieldRank(names[i]) < fieldRank(names[j]) ||
			(fieldRank(names[i]) == fieldRank(names[j]) && names[i] < names[j])
	})
	return names
}

func fieldRank(f string) int {
	for i, p := range models.FieldPriority {
		if p == f {
			return i
		}
	}
	return len(models.FieldPriority)
}

// pickFieldMessage returns the first message of the highest-priority field.
func pickFieldMessage(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for k, msgs := range fields {
		if len(msgs) > 0 {
			names = append(names, k)
		}
	}
	return models.PickField(names, func(f string) string { return fields[f][0] })
}

// Message extracts the user-facing message from any error produced by this
// package or by local validation.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
