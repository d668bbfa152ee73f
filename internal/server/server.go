// Package server exposes the command surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/qbot/internal/link"
	"github.com/Lin-Jiong-HDU/qbot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Engine is the command engine behind the HTTP surface.
type Engine interface {
	Handle(ctx context.Context, req core.Request) *core.Response
	Press(ctx context.Context, promptID, callerID string, button confirm.Button) *core.Response
}

// Server serves commands, confirmations, health and metrics.
type Server struct {
	addr     string
	token    string
	engine   Engine
	limiter  *callerLimiter
	gatherer prometheus.Gatherer
	link     *link.State
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLink sets the connection state marked ready once listening.
func WithLink(l *link.State) Option {
	return func(s *Server) { s.link = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(cfg storage.ServerConfig, token string, engine Engine, opts ...Option) *Server {
	s := &Server{
		addr:     cfg.Addr,
		token:    token,
		engine:   engine,
		limiter:  newCallerLimiter(cfg.RateLimit, cfg.Burst),
		gatherer: prometheus.DefaultGatherer,
		link:     &link.State{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireToken(s.token, s.logger))
		r.Use(s.limiter.Middleware(s.logger))
		r.Post("/commands/{name}", s.handleCommand)
		r.Post("/confirmations/{id}/{button}", s.handleConfirmation)
	})
	return r
}

// ListenAndServe listens on the configured address and serves until
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. The link is ready while the
// listener accepts connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("http surface listening", "addr", ln.Addr().String())
	s.link.MarkReady()
	defer s.link.MarkDown()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http surface stopped")
	return nil
}

type commandRequest struct {
	Args []string `json:"args"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body commandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.logger.WarnContext(ctx, "invalid command request",
			"request_id", middleware.GetReqID(ctx),
			"error", err.Error(),
		)
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	resp := s.engine.Handle(ctx, core.Request{
		Command:  chi.URLParam(r, "name"),
		CallerID: GetCallerID(ctx),
		Args:     body.Args,
	})
	writeResponse(w, s.logger, resp)
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var button confirm.Button
	switch chi.URLParam(r, "button") {
	case "confirm":
		button = confirm.ButtonConfirm
	case "cancel":
		button = confirm.ButtonCancel
	default:
		writeError(w, s.logger, http.StatusNotFound, "not_found", "unknown confirmation action")
		return
	}

	// The approved action keeps running if the client hangs up.
	resp := s.engine.Press(context.WithoutCancel(ctx), chi.URLParam(r, "id"), GetCallerID(ctx), button)
	writeResponse(w, s.logger, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": s.link.Connected(),
	})
}

// StatusCode maps a command outcome to an HTTP status. Outcomes the
// command itself produced, including failures, are 200.
func StatusCode(st core.Status) int {
	switch st {
	case core.StatusAwaitingConfirmation:
		return http.StatusAccepted
	case core.StatusUnauthorized:
		return http.StatusForbidden
	case core.StatusRejected:
		return http.StatusBadRequest
	case core.StatusBusy:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

func writeResponse(w http.ResponseWriter, logger *slog.Logger, resp *core.Response) {
	writeJSON(w, logger, StatusCode(resp.Status), resp)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, code int, errCode, description string) {
	writeJSON(w, logger, code, map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
