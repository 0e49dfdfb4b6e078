package duelerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transport layers can branch without
// string-matching messages.
type Kind int

const (
	// KindInternal covers infrastructure failures: storage unavailable,
	// engine crash. Never a caller error.
	KindInternal Kind = iota
	// KindValidation covers malformed or missing primitive input.
	KindValidation
	// KindAuthorization covers missing, invalid, or mismatched tokens.
	KindAuthorization
	// KindNotFound covers references to users or games that do not exist.
	KindNotFound
	// KindDomain covers state-machine and rules violations.
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindDomain:
		return "domain"
	default:
		return "internal"
	}
}

// Error is a typed failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.cause }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Domainf(format string, args ...any) *Error {
	return &Error{Kind: KindDomain, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an infrastructure failure. The wrapped error stays
// reachable through errors.Unwrap for logging; the message shown to a
// caller is generic.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a duelerr.Error of the given kind.
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}
