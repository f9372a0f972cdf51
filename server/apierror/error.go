// Package apierror defines the stable error kinds surfaced on the wire.
package apierror

import (
	"errors"
	"fmt"
)

// Kind is a stable short code identifying an error class. The code string
// travels on the wire unchanged, so values here must never be renamed.
type Kind string

const (
	KindBadRequest            Kind = "BadRequest"
	KindUnauthenticated       Kind = "Unauthenticated"
	KindTranslation           Kind = "Translation"
	KindNotFound              Kind = "NotFound"
	KindAlreadyExists         Kind = "AlreadyExists"
	KindNameInUse             Kind = "NameInUse"
	KindNotEmpty              Kind = "NotEmpty"
	KindEngine                Kind = "Engine"
	KindTimeout               Kind = "Timeout"
	KindInternalInconsistency Kind = "InternalInconsistency"
	KindUnavailable           Kind = "Unavailable"
)

// SQL standard states reported alongside errors for driver compatibility.
const (
	SQLStateSuccess              = "00000"
	SQLStateAuthenticationFailed = "28000"
	SQLStateSyntaxError          = "42000"
	SQLStateDataException        = "22000"
	SQLStateNoData               = "02000"
	SQLStateTableExists          = "42S01"
	SQLStateGeneralError         = "HY000"
)

// SQLStateFor maps an error kind to its SQL state.
func SQLStateFor(kind Kind) string {
	switch kind {
	case KindUnauthenticated:
		return SQLStateAuthenticationFailed
	case KindTranslation:
		return SQLStateSyntaxError
	case KindNotFound:
		return SQLStateNoData
	case KindAlreadyExists, KindNameInUse:
		return SQLStateTableExists
	case KindEngine:
		return SQLStateDataException
	default:
		return SQLStateGeneralError
	}
}

// Error is an error with a stable kind attached.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Is matches Errors by kind so errors.Is can test for a class of failure.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. Engine errors keep the
// engine's message so clients see the real rejection reason.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	msg := err.Error()
	if kind == KindEngine {
		msg = "Engine: " + msg
	}
	return &Error{Kind: kind, Message: msg}
}

// From converts any error to an *Error. Foreign errors default to the
// Engine kind since everything that isn't ours came out of the database.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindEngine, err)
}

// KindOf extracts the kind from an error.
func KindOf(err error) Kind {
	return From(err).Kind
}
