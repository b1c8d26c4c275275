package pipeline

// Pipeline failure taxonomy. Every abort path maps onto exactly one of
// these sentinels; callers match with errors.Is.
var (
	// ErrDisabled rejects a run before any phase executes.
	ErrDisabled = NewError(KindConfigRejected, "automation is disabled")
	// ErrRunActive rejects a second run while one is in flight.
	ErrRunActive = NewError(KindConfigRejected, "a run is already active")
	// ErrTimeout is a prompts or GPU wait that exhausted its bound.
	ErrTimeout = NewError(KindTimeout, "wait timed out")
	// ErrUnavailable is an absent GPU or unresponsive backend.
	ErrUnavailable = NewError(KindResourceUnavailable, "resource unavailable")
	// ErrCancelled is an explicit cancellation.
	ErrCancelled = NewError(KindCancelled, "automation cancelled")
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindConfigRejected      Kind = "config_rejected"
	KindTimeout             Kind = "timeout"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindCollaboratorFailure Kind = "collaborator_failure"
	KindCancelled           Kind = "cancelled"
)

// Error is a classified pipeline failure, optionally wrapping a
// collaborator cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind, so wrapped variants built
// with WithMessage or WithCause still satisfy errors.Is against the
// package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Message: message, Cause: e.Cause}
}

// WithCause returns a copy wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Cause: cause}
}

// CollaboratorFailure wraps a fatal error raised by a collaborator or
// the trigger callback. The cause's text is surfaced verbatim in the
// terminal status.
func CollaboratorFailure(message string, cause error) *Error {
	return &Error{Kind: KindCollaboratorFailure, Message: message, Cause: cause}
}
