package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"tokenflow/internal/config"
	"tokenflow/internal/inference"
	"tokenflow/internal/model"
	"tokenflow/internal/validate"
)

type InferenceService interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	Encode(ctx context.Context, text string) ([]int, error)
	Decode(ctx context.Context, tokens []int) (string, error)
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

type Dependencies struct {
	Inference      InferenceService
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	inference    InferenceService
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
)

// Stable error codes of the public contract.
const (
	codeModelLoadFailed    = "MODEL_LOAD_FAILED"
	codeTokenizationFailed = "TOKENIZATION_FAILED"
	codeGenerationFailed   = "GENERATION_FAILED"
	codeValidationError    = "VALIDATION_ERROR"
	codeHTTPError          = "HTTP_ERROR"
	codeInternalError      = "INTERNAL_SERVER_ERROR"
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Inference == nil {
		panic("httpapi: inference service is required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		inference:    deps.Inference,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeHTTPError(w, r, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeHTTPError(w, r, http.StatusMethodNotAllowed)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/health", s.handleHealth)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Post("/generate", s.handleGenerate)
	r.Post("/encode", s.handleEncode)
	r.Post("/decode", s.handleDecode)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{Status: "ok"})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if !s.bindRequest(w, r, &req) {
		return
	}

	maxTokens := model.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	text, err := s.inference.Generate(r.Context(), req.Prompt, maxTokens)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.GenerateResponse{Text: text})
}

func (s *server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req model.EncodeRequest
	if !s.bindRequest(w, r, &req) {
		return
	}

	tokens, err := s.inference.Encode(r.Context(), req.Text)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []int{}
	}

	writeJSON(w, http.StatusOK, model.EncodeResponse{Tokens: tokens})
}

func (s *server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req model.DecodeRequest
	if !s.bindRequest(w, r, &req) {
		return
	}

	text, err := s.inference.Decode(r.Context(), req.Tokens)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.DecodeResponse{Text: text})
}

// bindRequest reads, decodes, and validates a JSON body. It writes the
// response itself on failure and reports whether the handler should proceed.
func (s *server) bindRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeHTTPError(w, r, http.StatusRequestEntityTooLarge)
			return false
		}
		s.writeHTTPError(w, r, http.StatusBadRequest)
		return false
	}

	if violations := validate.DecodeBody(bytes.NewReader(data), req); violations != nil {
		s.writeValidationError(w, r, violations)
		return false
	}
	return true
}

// writeMappedError is the single place that turns a service error into an
// HTTP status and body. The mapping is total: anything outside the closed
// taxonomy falls through to the suppressed 500.
func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	var infErr *inference.Error
	if errors.As(err, &infErr) {
		status := http.StatusInternalServerError
		code := codeGenerationFailed
		switch infErr.Kind {
		case inference.KindModelLoad:
			status = http.StatusServiceUnavailable
			code = codeModelLoadFailed
		case inference.KindTokenization:
			status = http.StatusBadRequest
			code = codeTokenizationFailed
		case inference.KindGeneration:
			status = http.StatusInternalServerError
			code = codeGenerationFailed
		}
		s.logger.Error("inference error",
			"request_id", requestIDFromContext(r.Context()),
			"kind", string(infErr.Kind),
			"error", infErr.Error(),
		)
		writeJSON(w, status, model.DomainErrorResponse{Error: code, Detail: infErr.Message})
		return
	}

	s.logger.Error("unclassified error",
		"request_id", requestIDFromContext(r.Context()),
		"error", err.Error(),
	)
	writeJSON(w, http.StatusInternalServerError, model.HTTPErrorResponse{
		Error:   codeInternalError,
		Message: "Something went wrong",
	})
}

func (s *server) writeValidationError(w http.ResponseWriter, r *http.Request, violations []model.FieldViolation) {
	writeJSON(w, http.StatusUnprocessableEntity, model.ValidationErrorResponse{
		Error:   codeValidationError,
		Details: violations,
	})
}

// writeHTTPError covers HTTP-level failures that carry an explicit status.
func (s *server) writeHTTPError(w http.ResponseWriter, r *http.Request, status int) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.HTTPErrorResponse{
		Error:   codeHTTPError,
		Message: http.StatusText(status),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A client-supplied id is reused verbatim so callers can correlate
		// their own traces; no format is imposed.
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		s.logger.Info("request_started",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("request_finished",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("request_failed",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeJSON(w, http.StatusInternalServerError, model.HTTPErrorResponse{
					Error:   codeInternalError,
					Message: "Something went wrong",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}
