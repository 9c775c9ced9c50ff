// Package http exposes the orchestrator over a JSON HTTP API with server-sent
// events for conversation updates.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/graph"
	"github.com/MikaYeghi/agent-first/pkg/runner"
)

// Engine is the part of the orchestrator the server needs.
// *agentfirst.Engine satisfies it.
type Engine interface {
	GetResponse(ctx context.Context, req domain.Request) (domain.Response, error)
	Converse(ctx context.Context, sessionID, text string) (domain.TurnResult, error)
	Session(ctx context.Context, sessionID string) (*domain.State, error)
	ListSessions(ctx context.Context) ([]string, error)
	EndSession(ctx context.Context, sessionID string) error
	Graph() *graph.Graph
	Handlers() []domain.HandlerDescriptor
}

// Server serves the Turn API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	version  string
	metrics  http.Handler
	validate bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithoutRequestValidation skips OpenAPI validation of incoming requests.
func WithoutRequestValidation() Option {
	return func(s *Server) {
		s.validate = false
	}
}

// NewHandler builds the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s := &Server{
		Engine:   engine,
		version:  "dev",
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.Streams = NewStreamManager(s.logger)

	doc, err := Spec(context.Background())
	if err != nil {
		return nil, err
	}
	apiVersion := doc.Info.Version

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	if s.validate {
		v, err := requestValidator(doc, s.logger)
		if err != nil {
			return nil, err
		}
		r.Use(v)
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app":         "agentorg-http",
			"version":     s.version,
			"api_version": apiVersion,
		})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/response", s.GetResponse)
		r.Get("/sessions", s.ListSessions)
		r.Get("/sessions/{sessionId}", s.GetSession)
		r.Delete("/sessions/{sessionId}", s.DeleteSession)
		r.Post("/sessions/{sessionId}/messages", s.Converse)
		r.Get("/graph", s.GetGraph)
		r.Get("/handlers", s.ListHandlers)
		r.Get("/events", s.SubscribeEvents)
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetResponse handles POST /v1/response.
func (s *Server) GetResponse(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), nil)
		return
	}
	text, err := runner.SanitizeInput(req.Text)
	if err != nil {
		writeError(w, inputStatus(err), err, req.Parameters)
		return
	}
	req.Text = text

	resp, err := s.Engine.GetResponse(r.Context(), req)
	if err != nil {
		s.logger.Error("turn failed", "err", err)
		writeError(w, statusFor(err), err, resp.Parameters)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type messageBody struct {
	Text string `json:"text"`
}

// Converse handles POST /v1/sessions/{sessionId}/messages.
func (s *Server) Converse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	var body messageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), nil)
		return
	}
	text, err := runner.SanitizeInput(body.Text)
	if err != nil {
		writeError(w, inputStatus(err), err, nil)
		return
	}

	res, err := s.Engine.Converse(r.Context(), sessionID, text)
	if err != nil {
		s.logger.Error("turn failed", "session_id", sessionID, "err", err)
		writeError(w, statusFor(err), err, nil)
		return
	}
	if res.Diff != nil {
		if payload, err := json.Marshal(res.Diff); err == nil {
			s.Streams.Broadcast(sessionID, string(payload))
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// ListSessions handles GET /v1/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListSessions(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err, nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /v1/sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.Session(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, statusFor(err), err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /v1/sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.EndSession(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		writeError(w, statusFor(err), err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type graphBody struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// GetGraph handles GET /v1/graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Engine.Graph()
	writeJSON(w, http.StatusOK, graphBody{Nodes: g.Nodes(), Edges: g.Edges()})
}

// ListHandlers handles GET /v1/handlers.
func (s *Server) ListHandlers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Handlers())
}

// SubscribeEvents handles GET /v1/events (SSE). Every committed turn of the
// session is pushed as a JSON state diff.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"), nil)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("session_id is required"), nil)
		return
	}
	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, f := range strings.Split(v, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("sse subscribed", "session_id", sessionID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !wanted(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// wanted reports whether the diff in msg touches one of the watched fields.
func wanted(msg string, watch []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "slots":
			if len(diff.Slots) > 0 {
				return true
			}
		case "messages", "history":
			if len(diff.Messages) > 0 {
				return true
			}
		case "status":
			if diff.Status != nil {
				return true
			}
		case "node":
			if diff.CurrentNodeID != nil {
				return true
			}
		}
	}
	return false
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConversationEnded):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func inputStatus(err error) int {
	if errors.Is(err, runner.ErrInputTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

type errorBody struct {
	Error      string         `json:"error"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error, params map[string]any) {
	writeJSON(w, status, errorBody{Error: err.Error(), Parameters: params})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
