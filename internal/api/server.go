package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tiergate/internal/agents"
	"tiergate/internal/api/health"
	"tiergate/internal/metrics"
	authsvc "tiergate/internal/services/auth"
	"tiergate/internal/tools"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

const adminTokenHeader = "X-Admin-Token"

// WebhookPublisher forwards inbound webhook bodies (Kafka in production)
type WebhookPublisher interface {
	PublishWebhook(ctx context.Context, source string, body json.RawMessage) (string, error)
}

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	AllowOrigins []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AdminToken guards catalog and plan injection routes; empty disables them
	AdminToken string
	// RequireAuth puts run and session routes behind a /login bearer token.
	// The admin token is accepted there too.
	RequireAuth bool
}

// Deps are the services behind the routes. Auth and Webhooks are optional.
type Deps struct {
	Turns    *agents.TurnRunner
	Resolver *tools.Resolver
	Auth     *authsvc.Service
	Webhooks WebhookPublisher
	Health   *health.Handler
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	cfg        ServerConfig
	deps       Deps
	httpServer *http.Server
	handler    http.Handler
	upgrader   websocket.Upgrader
	routes     []string
	log        *logger.Logger
	now        func() time.Time
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, deps Deps, log *logger.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log.With("component", "http"),
		now:  time.Now,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range cfg.AllowOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}

	mux := http.NewServeMux()

	s.route(mux, "GET /hello", s.handleHello)
	s.route(mux, "POST /composio/webhook", s.handleWebhook)
	s.route(mux, "POST /login", s.handleLogin)
	s.route(mux, "GET /list-apps", s.handleListApps)

	s.route(mux, "POST /apps/{app}/users/{user}/sessions", s.requireUser(s.handleCreateSession))
	s.route(mux, "GET /apps/{app}/users/{user}/sessions", s.requireUser(s.handleListSessions))
	s.route(mux, "POST /apps/{app}/users/{user}/sessions/{session}", s.requireUser(s.handleCreateSessionWithID))
	s.route(mux, "GET /apps/{app}/users/{user}/sessions/{session}", s.requireUser(s.handleGetSession))
	s.route(mux, "DELETE /apps/{app}/users/{user}/sessions/{session}", s.requireUser(s.handleDeleteSession))

	s.route(mux, "POST /run", s.requireUser(s.handleRun))
	s.route(mux, "POST /run_sse", s.requireUser(s.handleRunSSE))
	s.route(mux, "GET /run_live", s.requireUser(s.handleRunLive))

	s.route(mux, "GET /apps/{app}/tools", s.requireAdmin(s.handleCatalog))
	s.route(mux, "GET /apps/{app}/users/{user}/sessions/{session}/tools", s.requireUser(s.handleSessionTools))
	s.route(mux, "PUT /apps/{app}/users/{user}/sessions/{session}/plan", s.requireAdmin(s.handleSetPlan))

	if deps.Health != nil {
		s.route(mux, "GET /health", deps.Health.HandleHealth)
		s.route(mux, "GET /ready", deps.Health.HandleReadiness)
		s.route(mux, "GET /live", deps.Health.HandleLiveness)
	}
	mux.Handle("GET /metrics", metrics.Handler())
	s.routes = append(s.routes, "GET /metrics")
	s.route(mux, "GET /{$}", s.handleRoot)

	s.handler = recoverer(s.log, cors(cfg.AllowOrigins, mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, instrument(pattern, s.log, h))
	s.routes = append(s.routes, pattern)
}

// Handler returns the full middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Routes lists the registered route patterns in registration order
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// Start listens until the server is shut down
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server", "addr", s.httpServer.Addr, "routes", len(s.routes))
	for _, r := range s.routes {
		s.log.Infow("Route registered", "route", r)
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Stopping HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	s.log.Infow("✓ HTTP server stopped")
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": s.cfg.ServiceName,
		"version": s.cfg.Version,
		"status":  "running",
		"apps":    s.deps.Turns.Apps(),
	})
}

func (s *Server) handleHello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (s *Server) handleListApps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Turns.Apps())
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	ok, err := decodeBody(r, &body)
	if err != nil || !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	s.log.Infow("Webhook received", "source", "composio", "bytes", len(body))

	resp := map[string]string{"status": "received"}
	if s.deps.Webhooks != nil {
		id, err := s.deps.Webhooks.PublishWebhook(r.Context(), "composio", body)
		if err != nil {
			s.log.Warnw("Failed to forward webhook", "error", err)
		} else {
			resp["id"] = id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		s.writeError(w, r, errors.Wrap(errors.ErrUnavailable, "login is not configured"))
		return
	}

	var input authsvc.LoginInput
	if _, err := decodeBody(r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.deps.Auth.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireAdmin checks X-Admin-Token against the configured token
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			s.writeError(w, r, errors.Wrap(errors.ErrForbidden, "admin routes are disabled"))
			return
		}
		if !s.isAdmin(r) {
			s.writeError(w, r, errors.Wrap(errors.ErrUnauthorized, "invalid admin token"))
			return
		}
		next(w, r)
	}
}

// requireUser applies bearer token authentication when RequireAuth is set
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	if !s.cfg.RequireAuth {
		return next
	}
	var validator TokenValidator
	if s.deps.Auth != nil {
		validator = s.deps.Auth
	}
	return authenticate(validator, s.isAdmin, s.log, next).ServeHTTP
}

// authorizeUser checks a user id taken from a body or query against the
// token's subject. Unauthenticated and admin requests carry no subject.
func (s *Server) authorizeUser(r *http.Request, userID string) error {
	caller, ok := CallerFromContext(r.Context())
	if !ok || caller == userID {
		return nil
	}
	return errors.Wrapf(errors.ErrForbidden, "token does not belong to user %s", userID)
}

// isAdmin reports whether r carries the configured admin token
func (s *Server) isAdmin(r *http.Request) bool {
	return s.cfg.AdminToken != "" && tokenEqual(r.Header.Get(adminTokenHeader), s.cfg.AdminToken)
}

func (s *Server) knownApp(app string) error {
	for _, name := range s.deps.Turns.Apps() {
		if name == app {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrNotFound, "app %s", strings.TrimSpace(app))
}
