// Package api provides the HTTP API server for writing to and recalling from
// tiered memory.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler

	// DisableMetrics removes the /metrics endpoint.
	DisableMetrics bool
}
