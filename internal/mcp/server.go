package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Summit Chronicles", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Summit Chronicles training server. Look up the weekly mountaineering training plan and current weather at a location."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetTrainingWeek, Handler: h.getTrainingWeek},
		server.ServerTool{Tool: toolGetTrainingSchedule, Handler: h.getTrainingSchedule},
		server.ServerTool{Tool: toolGetWeather, Handler: h.getWeather},
	)

	s.AddResources(
		server.ServerResource{Resource: resCurrentWeek, Handler: h.currentWeek},
	)

	return s
}

// HTTPHandler serves s over the streamable HTTP transport.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

// ServeStdio serves s on stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resCurrentWeek = mcp.NewResource(
	"summit://current_week",
	"Current Training Week",
	mcp.WithResourceDescription("This week's planned workouts, Monday to Sunday"),
	mcp.WithMIMEType("application/json"),
)
