// Package errs provides structured error types and helpers for the scribe ingestion core.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a failure category.
type Code string

const (
	// CodeNotFound indicates the account does not exist under any probed mode.
	CodeNotFound Code = "not_found"
	// CodeTransient indicates a retryable upstream or network failure.
	CodeTransient Code = "transient"
	// CodeDiscoveryDegraded indicates the activity index fell back to a cached or static ordering.
	CodeDiscoveryDegraded Code = "discovery_degraded"
	// CodeFatalConfig indicates malformed static configuration detected at startup.
	CodeFatalConfig Code = "fatal_config"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeCancelled indicates work that was never started because the caller cancelled.
	CodeCancelled Code = "cancelled"
	// CodeStorage indicates a persistence collaborator failure.
	CodeStorage Code = "storage"
	// CodeUnknown captures uncategorized failures.
	CodeUnknown Code = "unknown"
)

// E captures structured error information produced across the ingestion core.
type E struct {
	Op          string
	Code        Code
	Account     string
	Mode        string
	HTTP        int
	Message     string
	Remediation string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and error code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{
		Op:   strings.TrimSpace(op),
		Code: code,
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

// WithRemediation attaches remediation guidance to the error.
func WithRemediation(remediation string) Option {
	trimmed := strings.TrimSpace(remediation)
	return func(e *E) {
		e.Remediation = trimmed
	}
}

// WithHTTP records the associated upstream HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithAccount records the account the failure relates to.
func WithAccount(account string) Option {
	trimmed := strings.TrimSpace(account)
	return func(e *E) {
		e.Account = trimmed
	}
}

// WithMode records the gamemode the failure relates to.
func WithMode(mode string) Option {
	trimmed := strings.TrimSpace(mode)
	return func(e *E) {
		e.Mode = trimmed
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

	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, "op="+op)
	}

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = string(CodeUnknown)
	}
	parts = append(parts, "code="+code)

	if e.Account != "" {
		parts = append(parts, "account="+strconv.Quote(e.Account))
	}
	if e.Mode != "" {
		parts = append(parts, "mode="+e.Mode)
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Remediation != "" {
		parts = append(parts, "remediation="+strconv.Quote(e.Remediation))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf returns the code of the first envelope in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) && e != nil {
		if e.Code == "" {
			return CodeUnknown
		}
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the provided code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the most descriptive text available for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) && e != nil && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
