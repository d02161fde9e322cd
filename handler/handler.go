package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"handbook-chat/internal/domain"
	"handbook-chat/internal/metrics"
	"handbook-chat/internal/usecase"
)

const defaultMaxBodyBytes = 64 << 10

// Generator is the chat use case consumed by the generate route.
type Generator interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (usecase.GenerateOutput, error)
	Available() bool
}

// Subscriptions is the ledger use case consumed by the subscription routes.
type Subscriptions interface {
	Subscribe(ctx context.Context, ownerID string) (domain.Subscription, error)
	Status(ctx context.Context, ownerID string) (domain.SubscriptionStatus, error)
}

type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
	MaxBodyBytes   int64
	AllowedOrigins []string
}

type Handler struct {
	gen          Generator
	subs         Subscriptions
	logger       *slog.Logger
	metrics      *metrics.Recorder
	maxBodyBytes int64
	root         http.Handler
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type subscribeRequest struct {
	UserID string `json:"userId"`
}

type subscribeResponse struct {
	Success      bool `json:"success"`
	IsSubscribed bool `json:"isSubscribed"`
}

type statusResponse struct {
	IsSubscribed bool `json:"isSubscribed"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Generate bool   `json:"generate"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewHandler(gen Generator, subs Subscriptions, opts Options) (*Handler, error) {
	if gen == nil {
		return nil, errors.New("handler: generator must not be nil")
	}
	if subs == nil {
		return nil, errors.New("handler: subscriptions must not be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &Handler{
		gen:          gen,
		subs:         subs,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		maxBodyBytes: opts.MaxBodyBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", h.generate)
	mux.HandleFunc("POST /api/subscribe", h.subscribe)
	mux.HandleFunc("GET /api/subscription-status/{userId}", h.subscriptionStatus)
	mux.HandleFunc("GET /api/subscription-status/", h.subscriptionStatus)
	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	h.root = Chain(mux,
		Recover(h.logger),
		CorrelationID(),
		Logging(h.logger),
		CORS(NewCORSConfig(opts.AllowedOrigins)),
	)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// Routes lists the public endpoints for startup logging.
func Routes() []string {
	return []string{
		"POST /api/generate",
		"POST /api/subscribe",
		"GET /api/subscription-status/{userId}",
		"GET /healthz",
		"GET /metrics",
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.With("correlation_id", CorrelationIDFrom(ctx))

	var req generateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.metrics.Generate(metrics.OutcomeInvalid)
		h.writeError(w, log, routeGenerate, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "bad_body", Err: err})
		return
	}

	out, err := h.gen.Generate(ctx, usecase.GenerateInput{Prompt: req.Prompt})
	if err != nil {
		h.metrics.Generate(generateOutcome(err))
		h.writeError(w, log, routeGenerate, err)
		return
	}

	rc := http.NewResponseController(w)
	started := false
	start := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	for fragment, err := range out.Fragments {
		if err != nil {
			if !started {
				h.metrics.Generate(metrics.OutcomeUpstreamError)
				h.writeError(w, log, routeGenerate, err)
				return
			}
			if ctx.Err() != nil {
				h.metrics.Generate(metrics.OutcomeAborted)
				log.InfoContext(ctx, "client went away mid-stream", "err", err)
				return
			}
			// Headers are gone; ending the body is the only signal left.
			h.metrics.Generate(metrics.OutcomeTruncated)
			log.ErrorContext(ctx, "upstream failed mid-stream", "err", err, "reason", usecase.ReasonOf(err))
			return
		}
		if !started {
			start()
		}
		if _, werr := io.WriteString(w, fragment); werr != nil {
			h.metrics.Generate(metrics.OutcomeAborted)
			log.InfoContext(ctx, "stream write failed", "err", werr)
			return
		}
		if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
			h.metrics.Generate(metrics.OutcomeAborted)
			log.InfoContext(ctx, "stream flush failed", "err", ferr)
			return
		}
		h.metrics.Fragment()
	}
	if !started {
		start()
	}

	if out.Source == usecase.SourceCanned {
		h.metrics.Generate(metrics.OutcomeCanned)
		return
	}
	h.metrics.Generate(metrics.OutcomeGenerated)
}

func generateOutcome(err error) string {
	switch usecase.CodeOf(err) {
	case usecase.ErrorInvalidInput:
		return metrics.OutcomeInvalid
	case usecase.ErrorServiceUnavailable:
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeUpstreamError
	}
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.With("correlation_id", CorrelationIDFrom(ctx))

	var req subscribeRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, log, routeSubscribe, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "bad_body", Err: err})
		return
	}
	if _, err := h.subs.Subscribe(ctx, req.UserID); err != nil {
		h.writeError(w, log, routeSubscribe, err)
		return
	}
	h.metrics.Subscribed()
	writeJSON(w, http.StatusOK, subscribeResponse{Success: true, IsSubscribed: true})
}

func (h *Handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.With("correlation_id", CorrelationIDFrom(ctx))

	userID := r.PathValue("userId")
	if userID == "" && strings.TrimPrefix(r.URL.Path, "/api/subscription-status/") != "" {
		http.NotFound(w, r)
		return
	}
	status, err := h.subs.Status(ctx, userID)
	if err != nil {
		h.writeError(w, log, routeStatus, err)
		return
	}
	switch {
	case status.Active:
		h.metrics.StatusChecked(metrics.CheckActive)
	case status.Expired:
		h.metrics.StatusChecked(metrics.CheckExpired)
	default:
		h.metrics.StatusChecked(metrics.CheckInactive)
	}
	writeJSON(w, http.StatusOK, statusResponse{IsSubscribed: status.Active})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Generate: h.gen.Available()})
}

// decodeJSON reads exactly one JSON object from a size-capped body.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data")
	}
	return nil
}

type route int

const (
	routeGenerate route = iota
	routeSubscribe
	routeStatus
)

const (
	msgInvalidPrompt   = "A valid string prompt is required."
	msgInvalidUserID   = "A valid string userId is required."
	msgMissingUserID   = "A userId parameter is required."
	msgUnavailable     = "The AI service is not available because the API key is not configured on the server."
	msgGenerateFailure = "An error occurred while processing your request with the AI service."
	msgInternal        = "An internal error occurred."
)

func publicMessage(rt route, code usecase.ErrorCode) string {
	if code == usecase.ErrorInvalidInput {
		switch rt {
		case routeGenerate:
			return msgInvalidPrompt
		case routeSubscribe:
			return msgInvalidUserID
		default:
			return msgMissingUserID
		}
	}
	if rt != routeGenerate {
		return msgInternal
	}
	if code == usecase.ErrorServiceUnavailable {
		return msgUnavailable
	}
	return msgGenerateFailure
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the full error and sends only the fixed public message.
func (h *Handler) writeError(w http.ResponseWriter, log *slog.Logger, rt route, err error) {
	code := usecase.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", string(code), "reason", usecase.ReasonOf(err), "err", err)
	} else {
		log.Info("request rejected", "code", string(code), "reason", usecase.ReasonOf(err), "err", err)
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(rt, code), Code: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
