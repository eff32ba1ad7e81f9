// @title           mudcore admin API
// @version         1.0
// @description     Operator-facing management plane for the mudcore driver runtime.
// @BasePath        /

// Package api implements the optional admin HTTP API: a thin gin
// transport skin over the Driver facade's subsystem
// accessors. It holds no state of its own and enforces no invariant
// the core doesn't already enforce.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/middleware"
	"github.com/mudcore/mudcore/pkg/driver"
)

// Config controls the admin API's exposure.
type Config struct {
	Enable  bool
	Addr    string
	APIKey  string
	DevMode bool
}

// Server hosts the Gin engine wired against a Driver.
type Server struct {
	engine *gin.Engine
	config Config
	driver *driver.Driver
	log    *slog.Logger
}

// NewServer constructs the admin HTTP API server over drv.
func NewServer(cfg Config, drv *driver.Driver, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(log))

	srv := &Server{engine: engine, config: cfg, driver: drv, log: log}
	srv.setupRoutes()
	return srv
}

// Engine returns the underlying Gin engine (for http.Server).
func (s *Server) Engine() *gin.Engine { return s.engine }

// Addr returns the configured address.
func (s *Server) Addr() string { return s.config.Addr }

// Run starts the HTTP server on the configured address. Blocks until
// the listener errors or is shut down.
func (s *Server) Run() error {
	s.log.Info("admin api listening", "addr", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.engine)
}
