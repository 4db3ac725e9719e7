package inference

import "fmt"

// Kind classifies a model failure. The set is closed: the HTTP error mapper
// depends on it being exhaustive.
type Kind string

const (
	// KindModelLoad means the model or tokenizer could not be loaded.
	KindModelLoad Kind = "model_load"
	// KindTokenization means encoding or decoding tokens failed.
	KindTokenization Kind = "tokenization"
	// KindGeneration means text generation failed during inference.
	KindGeneration Kind = "generation"
)

// Error is the only error type the service lets escape. Message is safe to
// show to clients; the wrapped cause is for logs only.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a classified error. Exposed so tests can fabricate
// service failures without a runner.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}
