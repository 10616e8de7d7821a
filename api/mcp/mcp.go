// Package mcp provides an MCP (Model Context Protocol) server exposing tiered
// memory as agent tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tiermem/pkg/tiered"
	"github.com/papercomputeco/tiermem/pkg/utils"
)

type Config struct {
	// Memory answers both tools.
	Memory *tiered.Memory

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	logger    *slog.Logger
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tiermem",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Memory == nil {
			return nil, errors.New("memory is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}
		s.logger = c.Logger.With("component", "mcp")

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        memoryRecallToolName,
			Description: memoryRecallDescription,
		}, s.handleMemoryRecall)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        shortTermToolName,
			Description: shortTermDescription,
		}, s.handleShortTerm)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
