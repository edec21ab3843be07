package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/fsmsim"
	"github.com/aretw0/fsmsim/internal/presentation/graph"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/ports"
	"github.com/aretw0/fsmsim/pkg/runner"
	"github.com/aretw0/fsmsim/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a session.Manager over HTTP.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	loader   ports.MachineLoader
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLoader lets clients create sessions from a machine reference and list
// the available machines.
func WithLoader(loader ports.MachineLoader) Option {
	return func(s *Server) {
		s.loader = loader
	}
}

// WithMetrics serves the gatherer's metrics on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates a Server backed by the given session manager.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		Sessions: sessions,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates the HTTP handler for a session manager.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(sessions, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/check-safety", s.CheckSafety)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.loader != nil {
		r.Get("/machines", s.ListMachines)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/commands", s.ApplyCommand)
			r.Post("/step", s.Step)
			r.Post("/reset", s.command(domain.OpReset))
			r.Post("/continue", s.command(domain.OpContinue))
			r.Put("/variables/{name}", s.SetVariable)
			r.Put("/breakpoints/{state}", s.breakpoint(domain.OpAddStateBreakpoint))
			r.Delete("/breakpoints/{state}", s.breakpoint(domain.OpRemoveStateBreakpoint))
			r.Get("/graph", s.GetGraph)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
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

// CreateSessionRequest is the body of POST /sessions. Exactly one of Machine
// and MachineRef must be set; MachineRef requires a loader.
type CreateSessionRequest struct {
	Machine    *domain.Machine      `json:"machine,omitempty"`
	MachineRef string               `json:"machine_ref,omitempty"`
	Config     domain.SessionConfig `json:"config"`
}

// CommandResponse is returned by every endpoint that changes a session.
type CommandResponse struct {
	SessionID string               `json:"session_id"`
	Snapshot  domain.Snapshot      `json:"snapshot"`
	Diff      *domain.SnapshotDiff `json:"diff,omitempty"`
	Log       []string             `json:"log"`
	Resumed   bool                 `json:"resumed,omitempty"`
	// Error carries an engine failure that was recorded, such as a halting action error.
	Error string `json:"error,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "fsmsim-http",
		"version": strings.TrimSpace(fsmsim.Version),
	})
}

// CheckSafety handles POST /check-safety with a {"code": "..."} body.
func (s *Server) CheckSafety(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	safe, msg := fsmsim.CheckCodeSafety(body.Code)
	s.writeJSON(w, http.StatusOK, map[string]any{"safe": safe, "message": msg})
}

// ListMachines handles GET /machines.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	refs, err := s.loader.ListMachines()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, refs)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if !s.decode(w, r, &body) {
		return
	}
	body.Config.InitialVariables = domain.NormalizeVariables(body.Config.InitialVariables)

	var m domain.Machine
	switch {
	case body.Machine != nil && body.MachineRef != "":
		http.Error(w, "machine and machine_ref are mutually exclusive", http.StatusBadRequest)
		return
	case body.Machine != nil:
		m = *body.Machine
	case body.MachineRef != "":
		if s.loader == nil {
			http.Error(w, "machine_ref is not supported by this server", http.StatusBadRequest)
			return
		}
		loaded, err := s.loader.LoadMachine(body.MachineRef)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidDefinition, err))
			return
		}
		m = loaded
	default:
		http.Error(w, "machine or machine_ref is required", http.StatusBadRequest)
		return
	}

	res, err := s.Sessions.Create(r.Context(), m, body.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.response(res, nil))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyCommand handles POST /sessions/{id}/commands with a domain.Command body.
func (s *Server) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	var cmd domain.Command
	if !s.decode(w, r, &cmd) {
		return
	}
	cmd.Value = domain.NormalizeValue(cmd.Value)
	s.apply(w, r, cmd)
}

// Step handles POST /sessions/{id}/step. The body {"event": "..."} is optional.
func (s *Server) Step(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Event string `json:"event"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &body) {
		return
	}
	s.apply(w, r, domain.Command{Op: domain.OpStep, Event: body.Event})
}

// SetVariable handles PUT /sessions/{id}/variables/{name} with a {"value": ...} body.
func (s *Server) SetVariable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value any `json:"value"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.apply(w, r, domain.Command{
		Op:    domain.OpSetVariable,
		Name:  chi.URLParam(r, "name"),
		Value: domain.NormalizeValue(body.Value),
	})
}

func (s *Server) command(op domain.CommandOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.apply(w, r, domain.Command{Op: op})
	}
}

func (s *Server) breakpoint(op domain.CommandOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.apply(w, r, domain.Command{Op: op, Name: chi.URLParam(r, "state")})
	}
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, cmd domain.Command) {
	id := chi.URLParam(r, "id")
	event, err := runner.SanitizeEvent(cmd.Event)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd.Event = event
	res, err := s.Sessions.Apply(r.Context(), id, cmd)
	if res == nil {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		s.logger.Warn("command recorded with engine error", "session_id", id, "op", cmd.Op, "err", err)
	}

	// Calculate and Broadcast Diff
	if res.Diff != nil {
		if bytes, mErr := json.Marshal(res.Diff); mErr == nil {
			s.Streams.Broadcast(id, string(bytes))
		}
	}
	s.writeJSON(w, http.StatusOK, s.response(res, err))
}

func (s *Server) response(res *session.Result, err error) CommandResponse {
	resp := CommandResponse{
		SessionID: res.Session.ID,
		Snapshot:  res.Session.Snapshot,
		Diff:      res.Diff,
		Log:       res.Log,
		Resumed:   res.Resumed,
	}
	if resp.Log == nil {
		resp.Log = []string{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// GetGraph handles GET /sessions/{id}/graph?format=mermaid|dot. The active
// path and state breakpoints of the session are highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	overlay := &graph.GraphOverlay{
		ActivePath:  sess.Snapshot.ActivePath,
		Breakpoints: sess.Snapshot.StateBreakpoints,
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, graph.GenerateMermaid(sess.Machine, overlay))
	case "dot":
		out, err := graph.GenerateDOT(sess.Machine, overlay)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		_, _ = io.WriteString(w, out)
	default:
		http.Error(w, fmt.Sprintf("unknown graph format %q", format), http.StatusBadRequest)
	}
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE). Each message is a
// domain.SnapshotDiff. The optional "watch" query parameter takes a comma
// separated list of state, status, tick and variables and drops diffs that
// touch none of them.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	sessionID := chi.URLParam(r, "id")
	if _, err := s.Sessions.Get(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)
	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func watched(msg string, fields []string) bool {
	var diff domain.SnapshotDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range fields {
		switch strings.TrimSpace(field) {
		case "state":
			if diff.CurrentState != nil {
				return true
			}
		case "status":
			if diff.Halted != nil || diff.Paused != nil {
				return true
			}
		case "tick":
			if diff.Tick != nil {
				return true
			}
		case "variables":
			if len(diff.Variables) > 0 {
				return true
			}
		}
	}
	return false
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var fsmErr *domain.FSMError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidVariable),
		errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, runner.ErrInputTooLarge),
		errors.Is(err, runner.ErrInvalidUTF8),
		errors.Is(err, runner.ErrMultiline):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoStates),
		errors.Is(err, domain.ErrInvalidDefinition),
		errors.Is(err, domain.ErrDuplicateState),
		errors.As(err, &fsmErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLockNotAcquired):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
