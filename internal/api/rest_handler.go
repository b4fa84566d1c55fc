package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fincrime_engine/internal/health"
	"fincrime_engine/internal/logging"
	"fincrime_engine/internal/processor"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/crypto"
	"fincrime_engine/pkg/validator"
)

const signatureHeader = "X-Signature"

type APIHandler struct {
	engine         *processor.Engine
	health         *health.Registry
	signer         *crypto.Signer
	version        string
	logger         *slog.Logger
	requestTimeout time.Duration
}

// NewAPIHandler builds the HTTP surface of the engine. A nil signer
// disables response signing and request signature checks.
func NewAPIHandler(
	engine *processor.Engine,
	healthRegistry *health.Registry,
	signer *crypto.Signer,
	version string,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if healthRegistry == nil {
		healthRegistry = health.NewRegistry()
	}

	return &APIHandler{
		engine:         engine,
		health:         healthRegistry,
		signer:         signer,
		version:        version,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	ID      string `json:"transfer_id,omitempty"`
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/transfers", h.CreateTransferHandler)
	mux.HandleFunc("GET /api/v1/transfers/search", h.SearchTransfersHandler)
	mux.HandleFunc("GET /api/v1/transfers/recent", h.RecentTransfersHandler)
	mux.HandleFunc("GET /api/v1/transfers/{id}", h.GetTransferHandler)

	mux.HandleFunc("GET /api/v1/analysis/patterns", h.PatternsHandler)
	mux.HandleFunc("GET /api/v1/analysis/metrics", h.MetricsHandler)
	mux.HandleFunc("GET /api/v1/analysis/network", h.NetworkHandler)

	mux.HandleFunc("GET /api/v1/risk-score/{entity_id}", h.RiskScoreHandler)
	mux.HandleFunc("GET /api/v1/risk-metrics", h.RiskMetricsHandler)
	mux.HandleFunc("POST /api/v1/blacklist", h.AddToBlacklistHandler)
	mux.HandleFunc("GET /api/v1/blacklist", h.ListBlacklistHandler)
	mux.HandleFunc("GET /api/v1/blacklist/{entity_id}", h.GetBlacklistEntryHandler)

	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}

// Middleware tags each request with an id and logs its outcome.
func (h *APIHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := logging.WithRequestID(r.Context(), requestID)
		ctx = logging.WithLogger(ctx, h.logger)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logging.L(ctx).Info("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *APIHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.requestTimeout)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := h.health.CheckAll(ctx)
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	h.sendJSON(w, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"checks":    checks,
	}, code)
}

// sendEngineError maps engine errors onto HTTP statuses.
func (h *APIHandler) sendEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validator.ErrValidation):
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, err.Error(), http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, processor.ErrNoData):
		h.sendError(w, "No risk scores available", http.StatusNotFound, "NO_DATA")
	case errors.Is(err, repository.ErrDuplicate):
		h.sendError(w, err.Error(), http.StatusConflict, "DUPLICATE")
	case errors.Is(err, context.DeadlineExceeded):
		h.sendError(w, "Request timed out", http.StatusGatewayTimeout, "TIMEOUT")
	default:
		logging.L(r.Context()).Error("Engine operation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		h.sendError(w, "Internal server error", http.StatusInternalServerError, "SERVER_ERROR")
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// sendSignedJSON is sendJSON plus an HMAC of the body in X-Signature.
func (h *APIHandler) sendSignedJSON(w http.ResponseWriter, data any, statusCode int) {
	if h.signer == nil {
		h.sendJSON(w, data, statusCode)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
		h.sendError(w, "Internal server error", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(signatureHeader, h.signer.Sign(body))
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

// queryFloat reads a float query parameter, falling back to def when absent.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, validator.ParameterError(name, "must be a number")
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validator.ParameterError(name, "must be an integer")
	}
	return v, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validator.ParameterError(name, "must be an ISO-8601 timestamp")
}
