package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema              = errors.New("schema error")
	ErrTransientIO         = errors.New("transient io error")
	ErrSessionMissing      = errors.New("session missing")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrUIDriver            = errors.New("ui driver error")
	ErrValidation          = errors.New("validation error")
	ErrVerificationTimeout = errors.New("verification timeout")
	ErrCancelled           = errors.New("cancelled")
	ErrConfiguration       = errors.New("configuration error")
)

// Kind is the operator-facing failure classification written back to the
// job source when an upload fails.
type Kind string

const (
	KindNone                Kind = ""
	KindSchema              Kind = "SchemaError"
	KindTransientIO         Kind = "TransientIOError"
	KindSessionMissing      Kind = "SessionMissing"
	KindSourceUnavailable   Kind = "SourceUnavailable"
	KindUIDriver            Kind = "UIDriverError"
	KindValidation          Kind = "ValidationError"
	KindVerificationTimeout Kind = "VerificationTimeout"
	KindCancelled           Kind = "Cancelled"
	KindConfiguration       Kind = "ConfigurationError"
	KindUnknown             Kind = "UnknownError"
)

var kindMarkers = []struct {
	marker error
	kind   Kind
}{
	{ErrCancelled, KindCancelled},
	{ErrSessionMissing, KindSessionMissing},
	{ErrValidation, KindValidation},
	{ErrSchema, KindSchema},
	{ErrConfiguration, KindConfiguration},
	{ErrSourceUnavailable, KindSourceUnavailable},
	{ErrVerificationTimeout, KindVerificationTimeout},
	{ErrUIDriver, KindUIDriver},
	{ErrTransientIO, KindTransientIO},
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable regardless of its marker. A structurally
// invalid blob reference is SourceUnavailable but retrying it cannot help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// KindOf maps an error to its failure kind. Context cancellation maps to
// KindCancelled and unmarked errors to KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	for _, entry := range kindMarkers {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}

// Retryable reports whether a failure may succeed when the same transition is
// attempted again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	switch KindOf(err) {
	case KindSourceUnavailable, KindUIDriver, KindVerificationTimeout, KindTransientIO:
		return true
	default:
		return false
	}
}

// ErrorDetails carries the structured pieces of a wrapped failure for logging.
type ErrorDetails struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

// Details extracts logging fields from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{
		Kind:      KindOf(err),
		Message:   strings.TrimSpace(err.Error()),
		Retryable: Retryable(err),
	}
	cause := err
	for {
		next := errors.Unwrap(cause)
		if next == nil {
			break
		}
		cause = next
	}
	if cause != err {
		details.Cause = cause
	}
	return details
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
