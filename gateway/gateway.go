// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Package gateway exposes the FileMaker Data API as MCP tools. Each tool is
// a thin passthrough to the connection registry, the token cache, or the
// Data API client; authenticated data tools run through the session layer's
// retry-on-unauthorized wrapper.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/fmclient"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/session"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/tokens"
)

// ServerName and ServerVersion identify the gateway to MCP clients.
const (
	ServerName    = "fm-dapi-gateway"
	ServerVersion = "1.0.0"
)

// Gateway wires the tool surface over its collaborators. All state lives in
// the injected components; the gateway itself is stateless per call.
type Gateway struct {
	registry *connections.Registry
	cache    *tokens.Cache
	manager  *session.Manager
	client   *fmclient.Client
	logger   *log.Logger
}

// New creates a gateway over constructor-injected collaborators.
func New(registry *connections.Registry, cache *tokens.Cache, manager *session.Manager, client *fmclient.Client) *Gateway {
	manager.SetRetryHook(promAuthRetries.Inc)
	return &Gateway{
		registry: registry,
		cache:    cache,
		manager:  manager,
		client:   client,
		logger:   log.New(os.Stderr, "[FM_GATEWAY] ", log.LstdFlags),
	}
}

// NewMCPServer builds the MCP server with every tool registered.
func (g *Gateway) NewMCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	g.Register(s)
	return s
}

// Register adds every declared tool kind to the server.
func (g *Gateway) Register(s *server.MCPServer) {
	for kind := ToolKind(0); kind < toolKindCount; kind++ {
		s.AddTool(kind.Definition(), g.handlerFor(kind))
	}
}

// handlerFor returns the instrumented handler for one tool kind.
func (g *Gateway) handlerFor(kind ToolKind) server.ToolHandlerFunc {
	name := kind.Name()
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := g.dispatch(ctx, kind, req)
		duration := time.Since(start)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}
		promToolCalls.WithLabelValues(name, status).Inc()
		promToolDuration.WithLabelValues(name).Observe(float64(duration.Milliseconds()))

		if err != nil {
			g.logger.Printf("Tool %s failed: %v (%v)", name, err, duration)
			// Tool failures surface as tool results, not protocol errors.
			return mcp.NewToolResultError(err.Error()), nil
		}
		return result, nil
	}
}

// dispatch routes one call to its handler. The switch is exhaustive over
// every declared kind.
func (g *Gateway) dispatch(ctx context.Context, kind ToolKind, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch kind {
	case ToolAddConnection:
		return g.handleAddConnection(ctx, req)
	case ToolRemoveConnection:
		return g.handleRemoveConnection(ctx, req)
	case ToolListConnections:
		return g.handleListConnections(ctx, req)
	case ToolSwitchConnection:
		return g.handleSwitchConnection(ctx, req)
	case ToolConnect:
		return g.handleConnect(ctx, req)
	case ToolSetDefaultConnection:
		return g.handleSetDefaultConnection(ctx, req)
	case ToolCurrentConnection:
		return g.handleCurrentConnection(ctx, req)
	case ToolLogout:
		return g.handleLogout(ctx, req)
	case ToolTokenInfo:
		return g.handleTokenInfo(ctx, req)
	case ToolTokenStats:
		return g.handleTokenStats(ctx, req)
	case ToolClearTokens:
		return g.handleClearTokens(ctx, req)
	case ToolListDatabases:
		return g.handleListDatabases(ctx, req)
	case ToolListLayouts:
		return g.handleListLayouts(ctx, req)
	case ToolListScripts:
		return g.handleListScripts(ctx, req)
	case ToolLayoutMetadata:
		return g.handleLayoutMetadata(ctx, req)
	case ToolGetRecords:
		return g.handleGetRecords(ctx, req)
	case ToolGetRecord:
		return g.handleGetRecord(ctx, req)
	case ToolCreateRecord:
		return g.handleCreateRecord(ctx, req)
	case ToolEditRecord:
		return g.handleEditRecord(ctx, req)
	case ToolDeleteRecord:
		return g.handleDeleteRecord(ctx, req)
	case ToolDuplicateRecord:
		return g.handleDuplicateRecord(ctx, req)
	case ToolFindRecords:
		return g.handleFindRecords(ctx, req)
	case ToolRunScript:
		return g.handleRunScript(ctx, req)
	case ToolSetGlobals:
		return g.handleSetGlobals(ctx, req)
	case ToolProductInfo:
		return g.handleProductInfo(ctx, req)
	default:
		return nil, fmt.Errorf("unknown tool kind %d", kind)
	}
}

// jsonResult marshals a payload as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// textResult formats a plain text result.
func textResult(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf(format, args...))
}
