package api

import (
	"errors"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/tiermem/pkg/tiered"
)

// Server is the API server in front of a tiered memory.
type Server struct {
	config Config
	memory *tiered.Memory
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The memory is injected so that it can
// be shared with the MCP server.
func NewServer(config Config, mem *tiered.Memory, logger *slog.Logger) (*Server, error) {
	if mem == nil {
		return nil, errors.New("memory is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		config: config,
		memory: mem,
		logger: logger.With("component", "api"),
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/memories", s.handleRemember)
	v1.Post("/recall", s.handleRecall)
	v1.Get("/windows/:owner/:actor/:window?", s.handleWindow)
	v1.Get("/thresholds", s.handleThresholds)

	if !config.DisableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// App exposes the underlying fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
