// Package errs provides structured error types and helpers for the storefront core.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a failure category in the checkout/cart core.
type Code string

const (
	// CodeNetwork indicates a transient network transport failure.
	CodeNetwork Code = "network"
	// CodeValidation indicates the remote collaborator rejected the request.
	CodeValidation Code = "validation"
	// CodeStale indicates a response arrived for a superseded input signature.
	CodeStale Code = "stale_response"
	// CodeCorruptCache indicates the durable cache blob could not be decoded.
	CodeCorruptCache Code = "corrupt_cache"
	// CodeRemote indicates a remote-side failure that is not a validation error.
	CodeRemote Code = "remote_error"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeRateLimited indicates that the request exceeded rate limits.
	CodeRateLimited Code = "rate_limited"
	// CodeAuth indicates authentication or authorization errors.
	CodeAuth Code = "auth"
	// CodeConflict indicates a mutation attempted while another is in flight.
	CodeConflict Code = "conflict"
)

// E captures structured error information produced across the storefront core.
type E struct {
	Scope   string
	Code    Code
	HTTP    int
	RawCode string
	RawMsg  string
	Message string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given scope and error code.
func New(scope string, code Code, opts ...Option) *E {
	e := &E{
		Scope:   strings.TrimSpace(scope),
		Code:    code,
		HTTP:    0,
		RawCode: "",
		RawMsg:  "",
		Message: "",
		cause:   nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw remote error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithRawMessage captures the raw remote error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	scope := strings.TrimSpace(e.Scope)
	if scope == "" {
		scope = "unknown"
	}
	parts = append(parts, "scope="+scope)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the error code from err, or the empty Code when err is not an envelope.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Transient reports whether err represents a failure worth retrying.
func Transient(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeRateLimited, CodeRemote:
		return true
	default:
		return false
	}
}
