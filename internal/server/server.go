package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/redactor/internal/config"
	"github.com/raaihank/redactor/internal/logger"
	"github.com/raaihank/redactor/internal/service"
	"github.com/raaihank/redactor/internal/web"
	"github.com/raaihank/redactor/internal/websocket"
	"github.com/raaihank/redactor/internal/workspace"
)

// Deps are the collaborators the server hands to every workspace
type Deps struct {
	Anonymizer service.Anonymizer
	// Recorder is optional
	Recorder workspace.Recorder
	// Health probes the anonymization service; optional
	Health  func(ctx context.Context) error
	Version string
}

// Server exposes workspaces over HTTP
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	deps     Deps
	router   *mux.Router
	server   *http.Server
	registry *Registry
	wsHub    *websocket.Hub
	limiter  *RateLimiter
	started  time.Time
}

// New creates a new workspace server instance
func New(cfg *config.Config, log *logger.Logger, deps Deps) (*Server, error) {
	if deps.Anonymizer == nil {
		return nil, fmt.Errorf("server requires an anonymizer")
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		deps:    deps,
		router:  mux.NewRouter(),
		limiter: NewRateLimiter(cfg.Server.RateLimit),
		started: time.Now(),
	}
	s.registry = NewRegistry(cfg.Server.MaxWorkspaces, s.newWorkspace)

	if cfg.WebSocket.Enabled {
		ws := cfg.WebSocket
		s.wsHub = websocket.NewHub(websocket.HubConfig{
			ReadBufferSize:       ws.ReadBufferSize,
			WriteBufferSize:      ws.WriteBufferSize,
			PingInterval:         ws.PingInterval,
			PongTimeout:          ws.PongTimeout,
			WriteTimeout:         ws.WriteTimeout,
			MaxMessageSize:       ws.MaxMessageSize,
			AllowedOrigins:       ws.AllowedOrigins,
			BroadcastConnections: true,
		}, s.registry, log.WithComponent("websocket").Logger)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/", web.ServeIndex).Methods(http.MethodGet)

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}

	// Only creating workspaces and calling the service are rate limited.
	// Edits, reads and teardown stay cheap so typing never runs out of budget.
	api := s.router.PathPrefix("/api/workspaces").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Handle("", s.rateLimitMiddleware(http.HandlerFunc(s.handleCreateWorkspace))).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.handleGetWorkspace).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleDeleteWorkspace).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/text", s.handleSetText).Methods(http.MethodPut)
	api.HandleFunc("/{id}/options", s.handleUpdateOption).Methods(http.MethodPatch)
	api.Handle("/{id}/submit", s.rateLimitMiddleware(http.HandlerFunc(s.handleSubmit))).Methods(http.MethodPost)
	api.HandleFunc("/{id}/clear", s.handleClear).Methods(http.MethodPost)
	api.HandleFunc("/{id}/download", s.handleDownload).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the live workspaces
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start runs the WebSocket hub and serves HTTP until Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting redactor workspace server",
		zap.Int("port", s.config.Server.Port),
		zap.String("service_url", s.config.Service.BaseURL),
		zap.Int("max_workspaces", s.config.Server.MaxWorkspaces),
		zap.Bool("websocket", s.wsHub != nil),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
	s.limiter.StartCleanupRoutine(ctx.Done())
	if idle := s.config.Server.WorkspaceIdleTimeout; idle > 0 {
		s.registry.StartExpiryRoutine(idle, s.hasViewers, s.logExpired, ctx.Done())
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop tears down every workspace and gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping redactor workspace server", zap.Int("workspaces", s.registry.Len()))
	s.registry.CloseAll()
	return s.server.Shutdown(ctx)
}

// expireIdle tears down workspaces nobody has touched or watched within
// the idle timeout
func (s *Server) expireIdle() []string {
	ids := s.registry.ExpireIdle(s.config.Server.WorkspaceIdleTimeout, s.hasViewers)
	s.logExpired(ids)
	return ids
}

func (s *Server) hasViewers(id string) bool {
	return s.wsHub != nil && s.wsHub.Viewers(id) > 0
}

func (s *Server) logExpired(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.logger.Info("Expired idle workspaces",
		zap.Strings("workspace_ids", ids),
		zap.Int("workspaces", s.registry.Len()))
}

func (s *Server) newWorkspace() *workspace.Workspace {
	opts := []workspace.Option{
		workspace.WithLogger(s.logger.WithComponent("workspace").Logger),
	}
	if s.deps.Recorder != nil {
		opts = append(opts, workspace.WithRecorder(s.deps.Recorder))
	}
	if s.wsHub != nil {
		opts = append(opts, workspace.WithObserver(s.wsHub.PublishState))
	}
	return workspace.New(s.deps.Anonymizer, opts...)
}
