package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the runtime the API drives.
type Engine interface {
	Create(ctx context.Context, definitionID string) (string, error)
	Start(ctx context.Context, id string) (domain.Outcome, error)
	Observe(ctx context.Context, id, predicate string, v domain.Value) (domain.Outcome, error)
	ObserveAll(ctx context.Context, predicate string, v domain.Value) ([]domain.Outcome, error)
	Abandon(ctx context.Context, id string) (domain.Outcome, error)
	Interrupt(ctx context.Context, id, nodeID string) (domain.Outcome, error)
	State(ctx context.Context, id string) (*domain.InstanceState, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// Server serves the runtime event API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	version  string
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// NewServer creates a Server. Use it instead of NewHandler when outcomes
// produced elsewhere must reach the event streams through Publish.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		logger:  slog.New(slog.DiscardHandler),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/observe", s.ObserveAll)
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", s.ListInstances)
		r.Post("/", s.CreateInstance)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetInstance)
			r.Delete("/", s.DeleteInstance)
			r.Post("/start", s.Start)
			r.Post("/observe", s.Observe)
			r.Post("/abandon", s.Abandon)
			r.Post("/interrupt", s.Interrupt)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateRequest is the body of POST /instances.
type CreateRequest struct {
	DefinitionID string `json:"definition_id"`
	Start        bool   `json:"start,omitempty"`
}

// CreateResponse is returned by POST /instances.
type CreateResponse struct {
	ID      string          `json:"id"`
	Outcome *domain.Outcome `json:"outcome,omitempty"`
}

// ObserveRequest carries one predicate value.
type ObserveRequest struct {
	Predicate string       `json:"predicate"`
	Value     domain.Value `json:"value"`
}

// InterruptRequest names the state to interrupt.
type InterruptRequest struct {
	Node string `json:"node"`
}

// CreateInstance handles POST /instances.
func (s *Server) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.DefinitionID == "" {
		http.Error(w, "definition_id is required", http.StatusBadRequest)
		return
	}

	id, err := s.Engine.Create(r.Context(), body.DefinitionID)
	if err != nil {
		s.fail(w, "CreateInstance", err)
		return
	}
	resp := CreateResponse{ID: id}
	if body.Start {
		out, err := s.Engine.Start(r.Context(), id)
		if err != nil {
			s.fail(w, "CreateInstance", err)
			return
		}
		s.Publish(out)
		resp.Outcome = &out
	}
	s.write(w, http.StatusCreated, resp)
}

// ListInstances handles GET /instances.
func (s *Server) ListInstances(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.List(r.Context())
	if err != nil {
		s.fail(w, "ListInstances", err)
		return
	}
	s.write(w, http.StatusOK, ids)
}

// GetInstance handles GET /instances/{id}.
func (s *Server) GetInstance(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetInstance", err)
		return
	}
	s.write(w, http.StatusOK, state)
}

// DeleteInstance handles DELETE /instances/{id}.
func (s *Server) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "DeleteInstance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST /instances/{id}/start.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "Start", func(ctx context.Context, id string) (domain.Outcome, error) {
		return s.Engine.Start(ctx, id)
	}, r)
}

// Observe handles POST /instances/{id}/observe.
func (s *Server) Observe(w http.ResponseWriter, r *http.Request) {
	var body ObserveRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Predicate == "" {
		http.Error(w, "predicate is required", http.StatusBadRequest)
		return
	}
	s.respond(w, "Observe", func(ctx context.Context, id string) (domain.Outcome, error) {
		return s.Engine.Observe(ctx, id, body.Predicate, body.Value)
	}, r)
}

// Abandon handles POST /instances/{id}/abandon.
func (s *Server) Abandon(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "Abandon", func(ctx context.Context, id string) (domain.Outcome, error) {
		return s.Engine.Abandon(ctx, id)
	}, r)
}

// Interrupt handles POST /instances/{id}/interrupt.
func (s *Server) Interrupt(w http.ResponseWriter, r *http.Request) {
	var body InterruptRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.respond(w, "Interrupt", func(ctx context.Context, id string) (domain.Outcome, error) {
		return s.Engine.Interrupt(ctx, id, body.Node)
	}, r)
}

// ObserveAll handles POST /observe, a world event every instance sees.
func (s *Server) ObserveAll(w http.ResponseWriter, r *http.Request) {
	var body ObserveRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Predicate == "" {
		http.Error(w, "predicate is required", http.StatusBadRequest)
		return
	}
	outcomes, err := s.Engine.ObserveAll(r.Context(), body.Predicate, body.Value)
	for _, out := range outcomes {
		s.Publish(out)
	}
	if err != nil {
		s.fail(w, "ObserveAll", err)
		return
	}
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}
	s.write(w, http.StatusOK, outcomes)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, map[string]string{
		"app":     "questgraph-http",
		"version": s.version,
	})
}

func (s *Server) respond(w http.ResponseWriter, op string, fn func(context.Context, string) (domain.Outcome, error), r *http.Request) {
	out, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, op, err)
		return
	}
	s.Publish(out)
	s.write(w, http.StatusOK, out)
}

// Publish sends an outcome to the streams following its instance.
func (s *Server) Publish(out domain.Outcome) {
	bytes, err := json.Marshal(out)
	if err != nil {
		return
	}
	s.Streams.Broadcast(out.InstanceID, string(bytes))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

func (s *Server) write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op+" rejected", "error", err)
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInstanceNotFound), errors.Is(err, domain.ErrDefinitionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyStarted), errors.Is(err, domain.ErrNotActive), errors.Is(err, domain.ErrStateNotActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnresolvedDefinition), errors.Is(err, domain.ErrUnsupportedVersion):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
