// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
)

func profileFromRequest(req mcp.CallToolRequest) (connections.Profile, error) {
	server, err := req.RequireString("server")
	if err != nil {
		return connections.Profile{}, err
	}
	database, err := req.RequireString("database")
	if err != nil {
		return connections.Profile{}, err
	}
	user, err := req.RequireString("user")
	if err != nil {
		return connections.Profile{}, err
	}
	password, err := req.RequireString("password")
	if err != nil {
		return connections.Profile{}, err
	}

	return connections.Profile{
		Server:   server,
		Database: database,
		User:     user,
		Password: password,
		Version:  req.GetString("version", ""),
	}, nil
}

func (g *Gateway) handleAddConnection(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, err
	}
	profile, err := profileFromRequest(req)
	if err != nil {
		return nil, err
	}

	if err := g.registry.AddNamed(name, profile); err != nil {
		return nil, err
	}
	return textResult("Connection '%s' added (%s/%s).", name, profile.Server, profile.Database), nil
}

func (g *Gateway) handleRemoveConnection(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, err
	}

	if err := g.registry.Remove(name); err != nil {
		return nil, err
	}
	return textResult("Connection '%s' removed.", name), nil
}

func (g *Gateway) handleListConnections(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profiles := g.registry.List()
	redacted := make([]connections.Profile, 0, len(profiles))
	for _, p := range profiles {
		redacted = append(redacted, p.Redacted())
	}

	return jsonResult(map[string]any{
		"connections":       redacted,
		"defaultConnection": g.registry.GetDefaultName(),
	})
}

func (g *Gateway) handleSwitchConnection(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, err
	}

	if err := g.registry.SwitchTo(name); err != nil {
		return nil, err
	}
	return textResult("Switched to connection '%s'.", name), nil
}

func (g *Gateway) handleConnect(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := profileFromRequest(req)
	if err != nil {
		return nil, err
	}

	if err := g.registry.SetCurrentInline(profile); err != nil {
		return nil, err
	}
	return textResult("Connected to %s/%s as %s.", profile.Server, profile.Database, profile.User), nil
}

func (g *Gateway) handleSetDefaultConnection(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, err
	}

	if err := g.registry.SetDefault(name); err != nil {
		return nil, err
	}
	return textResult("Default connection set to '%s'.", name), nil
}

func (g *Gateway) handleCurrentConnection(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, ok := g.registry.GetCurrent()
	if !ok {
		return mcp.NewToolResultText("No active connection."), nil
	}
	return jsonResult(profile.Redacted())
}

func (g *Gateway) handleLogout(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := g.manager.Logout(ctx); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText("Session closed."), nil
}

func (g *Gateway) handleTokenInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := g.manager.CurrentProfile()
	if err != nil {
		return nil, err
	}

	info, ok := g.cache.GetInfo(profile.Server, profile.Database, profile.User)
	if !ok {
		return mcp.NewToolResultText("No cached token for the active connection."), nil
	}
	return jsonResult(info)
}

func (g *Gateway) handleTokenStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(g.cache.Stats())
}

func (g *Gateway) handleClearTokens(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g.cache.ClearAll()
	return mcp.NewToolResultText("Token cache cleared."), nil
}
