// Package api exposes the approval gate and the strategy registry over HTTP
// so that approvers and operators can record decisions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/viant/vigil/service/approval"
	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/runner"
	"github.com/viant/vigil/service/strategy"
)

const maxBodyBytes = 1 << 20

// Gate is the approval surface used by the API.
type Gate interface {
	PendingRequests(ctx context.Context) []*approval.Request
	Lookup(ctx context.Context, id string) (*approval.Request, bool)
	Approve(ctx context.Context, id, approver string) bool
	Reject(ctx context.Context, id, rejector, reason string) bool
	CleanupExpired(ctx context.Context) int
}

// Strategies is the registry surface used by the API.
type Strategies interface {
	List(ctx context.Context) []*strategy.Strategy
	ActivateStrategy(ctx context.Context, id string) error
	DeactivateStrategy(ctx context.Context, id, reason string) error
}

// Runner is the run surface used by the API.
type Runner interface {
	RunAll(ctx context.Context) (*runner.Summary, error)
	RunByID(ctx context.Context, id string) (*runner.Result, error)
}

// Handler serves the HTTP API.
type Handler struct {
	gate       Gate
	strategies Strategies
	runner     Runner
	limiter    *RateLimiter
	logger     *slog.Logger
	router     chi.Router
}

// Option customises Handler.
type Option func(*Handler)

// WithGate mounts the approval routes.
func WithGate(gate Gate) Option { return func(h *Handler) { h.gate = gate } }

// WithStrategies mounts the strategy routes.
func WithStrategies(s Strategies) Option { return func(h *Handler) { h.strategies = s } }

// WithRunner mounts the run routes.
func WithRunner(r Runner) Option { return func(h *Handler) { h.runner = r } }

// WithRateLimit limits each client to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps > 0 {
			h.limiter = NewRateLimiter(rps, burst)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New builds the router.
func New(opts ...Option) *Handler {
	h := &Handler{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	r := chi.NewRouter()
	if h.limiter != nil {
		r.Use(h.limiter.Middleware)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.gate != nil {
		r.Get("/v1/approvals", h.listPending)
		r.Post("/v1/approvals/sweep", h.sweep)
		r.Get("/v1/approvals/{id}", h.getApproval)
		r.Post("/v1/approvals/{id}/approve", h.approve)
		r.Post("/v1/approvals/{id}/reject", h.reject)
	}
	if h.strategies != nil {
		r.Get("/v1/strategies", h.listStrategies)
		r.Post("/v1/strategies/{id}/activate", h.activate)
		r.Post("/v1/strategies/{id}/deactivate", h.deactivate)
	}
	if h.runner != nil {
		r.Post("/v1/strategies/{id}/run", h.runOne)
		r.Post("/v1/runs", h.runAll)
	}
	h.router = r
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type (
	approveBody struct {
		Approver string `json:"approver"`
	}
	rejectBody struct {
		Rejector string `json:"rejector"`
		Reason   string `json:"reason"`
	}
	deactivateBody struct {
		Reason string `json:"reason"`
	}
	decisionResponse struct {
		Accepted bool `json:"accepted"`
	}
)

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	pending := h.gate.PendingRequests(r.Context())
	if pending == nil {
		pending = []*approval.Request{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) getApproval(w http.ResponseWriter, r *http.Request) {
	request, ok := h.gate.Lookup(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var body approveBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Approver = strings.TrimSpace(body.Approver); body.Approver == "" {
		writeError(w, http.StatusBadRequest, "approver is required")
		return
	}
	accepted := h.gate.Approve(r.Context(), chi.URLParam(r, "id"), body.Approver)
	writeJSON(w, http.StatusOK, decisionResponse{Accepted: accepted})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var body rejectBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Rejector = strings.TrimSpace(body.Rejector); body.Rejector == "" {
		writeError(w, http.StatusBadRequest, "rejector is required")
		return
	}
	accepted := h.gate.Reject(r.Context(), chi.URLParam(r, "id"), body.Rejector, body.Reason)
	writeJSON(w, http.StatusOK, decisionResponse{Accepted: accepted})
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"expired": h.gate.CleanupExpired(r.Context())})
}

func (h *Handler) listStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.strategies.List(r.Context()))
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.strategies.ActivateStrategy(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": true})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	var body deactivateBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Reason == "" {
		body.Reason = "deactivated by operator"
	}
	id := chi.URLParam(r, "id")
	if err := h.strategies.DeactivateStrategy(r.Context(), id, body.Reason); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": false})
}

func (h *Handler) runOne(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) runAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.RunAll(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, dao.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Warn("api request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decode reads an optional JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
