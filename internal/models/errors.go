package models

// ErrorKind classifies a rejected session operation. Kinds are part of the
// event contract: clients branch on them (reconnect affordance vs terminal
// "not found" state).
type ErrorKind string

const (
	ErrKindCredentials    ErrorKind = "CREDENTIALS_ERROR"
	ErrKindSessionExpired ErrorKind = "SESSION_EXPIRED"
	ErrKindNotAuthorized  ErrorKind = "NOT_AUTHORIZED"
	ErrKindValidation     ErrorKind = "VALIDATION_ERROR"
	ErrKindUnknown        ErrorKind = "UNKNOWN_FAILURE"
)

// EventError is a typed mutation failure. It is converted into a targeted
// encounteredError event at the dispatch boundary and never broadcast.
type EventError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *EventError) Error() string { return string(e.Kind) + ": " + e.Message }

// ErrCredentials reports a connection that cannot be matched to a participant.
func ErrCredentials(msg string) *EventError {
	return &EventError{Kind: ErrKindCredentials, Message: msg}
}

// ErrSessionExpired reports an operation against a deleted or expired session.
func ErrSessionExpired(msg string) *EventError {
	return &EventError{Kind: ErrKindSessionExpired, Message: msg}
}

// ErrNotAuthorized reports a non-owner attempting an owner-only mutation.
func ErrNotAuthorized(msg string) *EventError {
	return &EventError{Kind: ErrKindNotAuthorized, Message: msg}
}

// ErrValidation reports a malformed or incomplete payload.
func ErrValidation(msg string) *EventError {
	return &EventError{Kind: ErrKindValidation, Message: msg}
}

// ErrUnknown wraps an unexpected internal failure; the client is told to
// reconnect rather than shown internals.
func ErrUnknown() *EventError {
	return &EventError{Kind: ErrKindUnknown, Message: "lost connection, please reconnect"}
}

// AsEventError returns err as an *EventError, wrapping unexpected errors
// as UNKNOWN_FAILURE.
func AsEventError(err error) *EventError {
	if ee, ok := err.(*EventError); ok {
		return ee
	}
	return ErrUnknown()
}
