package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/api/middleware"
	"github.com/mikey/llm-phish-filter/internal/api/routes"
	"github.com/mikey/llm-phish-filter/internal/config"
)

// Server serves the report, analysis and admin endpoints
type Server struct {
	cfg    config.APIConfig
	engine *gin.Engine
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// NewRouter builds the gin engine with middleware and routes attached
func NewRouter(cfg config.APIConfig, deps routes.Dependencies) (*gin.Engine, error) {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	allowlist, err := middleware.ParseAllowlist(cfg.AllowlistCIDRs)
	if err != nil {
		return nil, err
	}
	deps.Allowlist = allowlist

	router := gin.New()
	// ClientIP must be the socket peer, otherwise X-Forwarded-For defeats the allowlist
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if cfg.AllowedOrigin == "" || cfg.AllowedOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.AllowedOrigin}
	}
	router.Use(cors.New(corsCfg))

	router.Use(gin.Recovery(), middleware.LoggingMiddleware(deps.Logger), middleware.PrometheusMetrics())

	routes.SetupRoutes(router, deps)
	routes.AddAdminRoutes(router, deps.Level, deps.Logger)

	return router, nil
}

// NewServer creates a Server listening on cfg.ListenAddress once started
func NewServer(cfg config.APIConfig, deps routes.Dependencies) (*Server, error) {
	router, err := NewRouter(cfg, deps)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		engine: router,
		logger: deps.Logger,
		srv: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the bound address after Start
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.ln = ln
	s.logger.Info("Starting HTTP API", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP API stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
