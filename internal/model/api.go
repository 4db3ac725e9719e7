package model

// GenerateRequest asks the model for a continuation of Prompt. MaxTokens is a
// pointer so an absent field can be defaulted without conflating it with 0.
type GenerateRequest struct {
	Prompt    string `json:"prompt" validate:"required,min=1,max=2000"`
	MaxTokens *int   `json:"max_tokens" validate:"omitempty,min=1,max=200"`
}

// DefaultMaxTokens is applied when a GenerateRequest omits max_tokens.
const DefaultMaxTokens = 50

type GenerateResponse struct {
	Text string `json:"text"`
}

type EncodeRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

type EncodeResponse struct {
	// Tokens is the left-to-right token sequence; order is significant.
	Tokens []int `json:"tokens"`
}

type DecodeRequest struct {
	Tokens []int `json:"tokens" validate:"required,min=1,max=4096"`
}

type DecodeResponse struct {
	Text string `json:"text"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// DomainErrorResponse is the body for every classified inference failure.
type DomainErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Error   string           `json:"error"`
	Details []FieldViolation `json:"details"`
}

// HTTPErrorResponse covers HTTP-level failures with an explicit status
// (unknown route, wrong method, oversized body) and the suppressed catch-all.
type HTTPErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
