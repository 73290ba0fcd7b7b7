package orgs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so the transport layer can map it
// to a status code without inspecting error strings.
type ErrorKind int

const (
	// KindValidation marks malformed input, e.g. an invalid role string.
	KindValidation ErrorKind = iota
	// KindNotFound marks a missing organization, member or token.
	KindNotFound
	// KindForbidden marks an authorization failure.
	KindForbidden
	// KindConflict marks a business-rule violation such as a duplicate
	// slug, duplicate pending invitation or owner-role protection.
	KindConflict
	// KindExpired marks an invitation past its TTL.
	KindExpired
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Error is a typed domain error. Business-rule outcomes cross the service
// boundary as Error values, never as exceptions or sentinel strings.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func kindOf(err error) (ErrorKind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return 0, false
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// IsForbidden checks if an error is an authorization failure
func IsForbidden(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

// IsConflict checks if an error is a business-rule conflict
func IsConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConflict
}

// IsExpired checks if an error is an expired-invitation error
func IsExpired(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindExpired
}
