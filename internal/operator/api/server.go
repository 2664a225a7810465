// Package api serves the operator's health, status and metrics endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/trigg3rX/pumpkit-operator/internal/operator"
	"github.com/trigg3rX/pumpkit-operator/internal/operator/registration"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
}

type Config struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
}

// Identity is the operator whose state the API reports
type Identity interface {
	Address() common.Address
	Status() registration.Status
}

type Watcher interface {
	Live() bool
}

type Dispatcher interface {
	Stats() operator.Stats
}

type Dependencies struct {
	Logger         logging.Logger
	Operator       Identity
	Watcher        Watcher
	Dispatcher     Dispatcher
	MetricsHandler http.Handler
	ChainID        string
}

func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = 1 << 20
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Origin"},
	})

	srv := &Server{
		router: router,
		logger: deps.Logger,
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%s", cfg.Port),
			Handler:        corsHandler.Handler(router),
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
	}

	srv.router.Use(gin.Recovery())
	srv.router.Use(LoggerMiddleware(srv.logger))
	srv.setupRoutes(deps)

	return srv
}

func (s *Server) setupRoutes(deps Dependencies) {
	h := &handler{deps: deps}

	s.router.GET("/health", h.Health)
	s.router.GET("/status", h.Status)
	if deps.MetricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
}

// Handler is the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server is stopped
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}
