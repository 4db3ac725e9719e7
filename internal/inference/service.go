// Package inference wraps the model-runner collaborator behind three
// operations and a closed error taxonomy. The service is constructed once at
// startup, is read-only afterwards, and is safe for concurrent use.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tokenflow/internal/runner"
)

type Client interface {
	Load(ctx context.Context, model string) error
	Completion(ctx context.Context, req runner.CompletionRequest) (runner.CompletionResponse, error)
	Tokenize(ctx context.Context, model, text string) ([]int, error)
	Detokenize(ctx context.Context, model string, tokens []int) (string, error)
}

type Options struct {
	LoadTimeout     time.Duration
	GenerateTimeout time.Duration
	TokenizeTimeout time.Duration
	Temperature     float64
	Logger          *slog.Logger
	// TokenObserver, when set, receives the completion token count of every
	// successful generate call.
	TokenObserver func(n int)
}

type Service struct {
	client          Client
	modelID         string
	generateTimeout time.Duration
	tokenizeTimeout time.Duration
	temperature     float64
	logger          *slog.Logger
	tokenObserver   func(n int)
}

// New loads the model on the runner before returning. Any failure is wrapped
// as a model-load error; callers must treat it as fatal and not serve traffic.
func New(ctx context.Context, client Client, modelID string, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 1.0
	}

	logger.Info("loading model", "model", modelID)
	loadCtx := ctx
	if opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, opts.LoadTimeout)
		defer cancel()
	}
	if err := client.Load(loadCtx, modelID); err != nil {
		return nil, NewError(KindModelLoad, fmt.Sprintf("failed to load model '%s'", modelID), err)
	}
	logger.Info("model loaded", "model", modelID)

	return &Service{
		client:          client,
		modelID:         modelID,
		generateTimeout: opts.GenerateTimeout,
		tokenizeTimeout: opts.TokenizeTimeout,
		temperature:     opts.Temperature,
		logger:          logger,
		tokenObserver:   opts.TokenObserver,
	}, nil
}

func (s *Service) ModelID() string {
	return s.modelID
}

// Generate produces a sampled continuation of prompt, up to maxTokens new
// tokens. The operation is atomic: any failure yields a generation error and
// no partial text. Prompt content is only logged at debug level.
func (s *Service) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.logger.Info("generate called", "max_tokens", maxTokens)
	s.logger.Debug("generate prompt", "prompt", prompt)

	ctx, cancel := s.opContext(ctx, s.generateTimeout)
	defer cancel()

	resp, err := s.client.Completion(ctx, runner.CompletionRequest{
		Model:       s.modelID,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: s.temperature,
		Sample:      true,
	})
	if err != nil {
		return "", NewError(KindGeneration, "text generation failed", err)
	}
	if s.tokenObserver != nil {
		s.tokenObserver(resp.CompletionTokens)
	}
	return resp.Content, nil
}

// Encode converts text into token ids. No special tokens are inserted, so
// the result round-trips cleanly through Decode.
func (s *Service) Encode(ctx context.Context, text string) ([]int, error) {
	s.logger.Info("encode called", "text_len", len(text))

	ctx, cancel := s.opContext(ctx, s.tokenizeTimeout)
	defer cancel()

	tokens, err := s.client.Tokenize(ctx, s.modelID, text)
	if err != nil {
		return nil, NewError(KindTokenization, "failed to encode text", err)
	}
	return tokens, nil
}

// Decode converts token ids back into text, stripping special tokens.
func (s *Service) Decode(ctx context.Context, tokens []int) (string, error) {
	s.logger.Info("decode called", "token_count", len(tokens))

	ctx, cancel := s.opContext(ctx, s.tokenizeTimeout)
	defer cancel()

	text, err := s.client.Detokenize(ctx, s.modelID, tokens)
	if err != nil {
		return "", NewError(KindTokenization, "failed to decode tokens", err)
	}
	return text, nil
}

func (s *Service) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
