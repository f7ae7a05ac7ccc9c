package account

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Kind tags every error produced by the client so callers can branch on a
// stable value instead of inspecting messages or nested causes.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindConnectionReset   Kind = "connection_reset"
	KindConnectionRefused Kind = "connection_refused"
	KindTransport         Kind = "transport"
	KindHTTPStatus        Kind = "http_status"
	KindEncode            Kind = "encode"
	KindDecode            Kind = "decode"
)

// ErrNotConfigured is wrapped by every configuration error.
var ErrNotConfigured = errors.New("account service url is not configured")

// Error is returned by every Client method.
type Error struct {
	Kind       Kind
	Method     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("account")
	if e.Method != "" {
		b.WriteString(" ")
		b.WriteString(e.Method)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind exposes the kind as a plain string for generic classifiers.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// KindOf returns the kind of err, or "" when err did not come from this
// package.
func KindOf(err error) Kind {
	var accErr *Error
	if errors.As(err, &accErr) {
		return accErr.Kind
	}
	return ""
}

// IsTransient reports whether err is a connection reset or refused failure,
// the only failures the endpoint resolver retries.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindConnectionReset, KindConnectionRefused:
		return true
	default:
		return false
	}
}

// IsConfiguration reports whether err is a missing-configuration failure.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

func configurationError(method string) error {
	return &Error{Kind: KindConfiguration, Method: method, Err: ErrNotConfigured}
}

// transportError tags a failed round trip with its connection kind. This is
// the single place errno values are inspected.
func transportError(method string, err error) error {
	kind := KindTransport
	switch {
	case errors.Is(err, unix.ECONNRESET):
		kind = KindConnectionReset
	case errors.Is(err, unix.ECONNREFUSED):
		kind = KindConnectionRefused
	}
	return &Error{Kind: kind, Method: method, Err: err}
}
