package core

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotIdentified  = "not_identified"
	ErrCodeInvalidMessage = "invalid_message"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}
