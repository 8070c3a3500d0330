// Package autherr defines the error taxonomy shared by the invo SDK.
// Callers match errors by kind with errors.Is against the exported
// sentinel values, or extract the full error with errors.As.
package autherr

import (
	"errors"
	"fmt"
)

// Kind discriminates the classes of failure the SDK can report.
type Kind uint8

const (
	// KindAuth is the generic API failure, carrying the HTTP status
	// when one was received.
	KindAuth Kind = iota
	// KindInvalidCredentials maps HTTP 401 responses and rejected logins.
	KindInvalidCredentials
	// KindTokenExpired means no usable access or refresh token is
	// available locally.
	KindTokenExpired
	// KindMalformedToken means a token string could not be decoded.
	KindMalformedToken
	// KindNetwork wraps transport-level failures (DNS, refused
	// connections, timeouts); it never carries an HTTP status.
	KindNetwork
	// KindOAuth is reserved for the OAuth authorization-code variant of
	// this SDK and is not produced by the password or API-key flows.
	KindOAuth
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindTokenExpired:
		return "token expired"
	case KindMalformedToken:
		return "malformed token"
	case KindNetwork:
		return "network error"
	case KindOAuth:
		return "oauth error"
	default:
		return "auth error"
	}
}

// Sentinel values for errors.Is matching by kind.
var (
	ErrAuth               = &Error{Kind: KindAuth}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired}
	ErrMalformedToken     = &Error{Kind: KindMalformedToken}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrOAuth              = &Error{Kind: KindOAuth}
)

// Error is the concrete error type returned by the SDK for every
// classified failure.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int // 0 when no HTTP response was received
	cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error of the same kind, so that
// errors.Is(err, autherr.ErrNetwork) works regardless of message or status.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithStatus builds a classified error carrying the HTTP status code of
// the response that produced it.
func WithStatus(kind Kind, statusCode int, message string) *Error {
	return &Error{Kind: kind, Message: message, StatusCode: statusCode}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf reports the kind of err when it is (or wraps) an *Error. The
// second return is false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsClassified reports whether err already carries an SDK kind, so
// callers avoid double-wrapping transport failures.
func IsClassified(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
