// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/fmclient"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/session"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/tokens"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	registry := connections.NewRegistry(t.TempDir())
	cache := tokens.NewCache(t.TempDir())
	client := fmclient.New(fmclient.Options{})
	manager := session.NewManager(registry, cache, client)
	return New(registry, cache, manager, client)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("result carries no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func connectionArgs() map[string]any {
	return map[string]any{
		"name":     "prod",
		"server":   "fms.example.com",
		"database": "Sales",
		"user":     "api",
		"password": "secret",
	}
}

func TestToolKindNames(t *testing.T) {
	seen := make(map[string]ToolKind)
	for kind := ToolKind(0); kind < toolKindCount; kind++ {
		name := kind.Name()
		if name == "" {
			t.Errorf("kind %d has an empty name", kind)
			continue
		}
		if !strings.HasPrefix(name, "fm_") {
			t.Errorf("tool %s missing the fm_ prefix", name)
		}
		if prev, dup := seen[name]; dup {
			t.Errorf("name %s shared by kinds %d and %d", name, prev, kind)
		}
		seen[name] = kind

		def := kind.Definition()
		if def.Name != name {
			t.Errorf("definition name %s does not match kind name %s", def.Name, name)
		}
		if def.Description == "" {
			t.Errorf("tool %s has no description", name)
		}
	}
}

func TestDispatchCoversEveryKind(t *testing.T) {
	// Every kind must route somewhere. Unroutable kinds fall through the
	// dispatch switch and return an error rather than a nil result.
	g := newTestGateway(t)
	for kind := ToolKind(0); kind < toolKindCount; kind++ {
		result, err := g.handlerFor(kind)(context.Background(), callRequest(kind.Name(), nil))
		if err != nil {
			t.Errorf("kind %s returned a protocol error: %v", kind.Name(), err)
		}
		if result == nil {
			t.Errorf("kind %s returned no result", kind.Name())
		}
	}
}

func TestConnectionTools(t *testing.T) {
	t.Run("add and list", func(t *testing.T) {
		g := newTestGateway(t)

		result, err := g.handlerFor(ToolAddConnection)(context.Background(),
			callRequest("fm_add_connection", connectionArgs()))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError {
			t.Fatalf("add failed: %s", resultText(t, result))
		}

		result, err = g.handlerFor(ToolListConnections)(context.Background(),
			callRequest("fm_list_connections", nil))
		if err != nil {
			t.Fatal(err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "prod") {
			t.Errorf("listing does not mention prod: %s", text)
		}
		if strings.Contains(text, "secret") {
			t.Error("listing must not expose passwords")
		}
	})

	t.Run("switch and current", func(t *testing.T) {
		g := newTestGateway(t)

		if _, err := g.handlerFor(ToolAddConnection)(context.Background(),
			callRequest("fm_add_connection", connectionArgs())); err != nil {
			t.Fatal(err)
		}

		result, err := g.handlerFor(ToolSwitchConnection)(context.Background(),
			callRequest("fm_switch_connection", map[string]any{"name": "prod"}))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError {
			t.Fatalf("switch failed: %s", resultText(t, result))
		}

		result, err = g.handlerFor(ToolCurrentConnection)(context.Background(),
			callRequest("fm_current_connection", nil))
		if err != nil {
			t.Fatal(err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "Sales") {
			t.Errorf("current connection does not mention the database: %s", text)
		}
		if strings.Contains(text, "secret") {
			t.Error("current connection must not expose the password")
		}
	})

	t.Run("remove unknown surfaces a tool error", func(t *testing.T) {
		g := newTestGateway(t)

		result, err := g.handlerFor(ToolRemoveConnection)(context.Background(),
			callRequest("fm_remove_connection", map[string]any{"name": "ghost"}))
		if err != nil {
			t.Fatalf("failures must be tool results, not protocol errors: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected an error result")
		}
		if !strings.Contains(resultText(t, result), "not found") {
			t.Errorf("unexpected error text: %s", resultText(t, result))
		}
	})

	t.Run("add with missing arguments", func(t *testing.T) {
		g := newTestGateway(t)

		result, err := g.handlerFor(ToolAddConnection)(context.Background(),
			callRequest("fm_add_connection", map[string]any{"name": "prod"}))
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError {
			t.Fatal("expected a validation error result")
		}
	})

	t.Run("connect sets an inline connection", func(t *testing.T) {
		g := newTestGateway(t)

		args := connectionArgs()
		delete(args, "name")
		result, err := g.handlerFor(ToolConnect)(context.Background(),
			callRequest("fm_connect", args))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError {
			t.Fatalf("connect failed: %s", resultText(t, result))
		}

		current, ok := g.registry.GetCurrent()
		if !ok {
			t.Fatal("expected a current connection after connect")
		}
		if current.Name != "" {
			t.Errorf("inline connections are anonymous, got %q", current.Name)
		}
		if g.registry.Count() != 0 {
			t.Error("connect must not register a named profile")
		}
	})

	t.Run("set default", func(t *testing.T) {
		g := newTestGateway(t)

		if _, err := g.handlerFor(ToolAddConnection)(context.Background(),
			callRequest("fm_add_connection", connectionArgs())); err != nil {
			t.Fatal(err)
		}

		result, err := g.handlerFor(ToolSetDefaultConnection)(context.Background(),
			callRequest("fm_set_default_connection", map[string]any{"name": "prod"}))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError {
			t.Fatalf("set default failed: %s", resultText(t, result))
		}
		if g.registry.GetDefaultName() != "prod" {
			t.Errorf("expected default prod, got %q", g.registry.GetDefaultName())
		}
	})
}

func TestTokenTools(t *testing.T) {
	t.Run("stats reflect the cache", func(t *testing.T) {
		g := newTestGateway(t)
		g.cache.Cache("tok", "fms.example.com", "Sales", "api")

		result, err := g.handlerFor(ToolTokenStats)(context.Background(),
			callRequest("fm_token_stats", nil))
		if err != nil {
			t.Fatal(err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, `"totalCached": 1`) {
			t.Errorf("unexpected stats output: %s", text)
		}
	})

	t.Run("token info never exposes the token value", func(t *testing.T) {
		g := newTestGateway(t)

		if _, err := g.handlerFor(ToolAddConnection)(context.Background(),
			callRequest("fm_add_connection", connectionArgs())); err != nil {
			t.Fatal(err)
		}
		if _, err := g.handlerFor(ToolSwitchConnection)(context.Background(),
			callRequest("fm_switch_connection", map[string]any{"name": "prod"})); err != nil {
			t.Fatal(err)
		}
		g.cache.Cache("opaque-session-value", "fms.example.com", "Sales", "api")

		result, err := g.handlerFor(ToolTokenInfo)(context.Background(),
			callRequest("fm_token_info", nil))
		if err != nil {
			t.Fatal(err)
		}
		text := resultText(t, result)
		if result.IsError {
			t.Fatalf("token info failed: %s", text)
		}
		if !strings.Contains(text, "refreshCount") {
			t.Errorf("expected token metadata, got: %s", text)
		}
		if strings.Contains(text, "opaque-session-value") {
			t.Error("token info must not expose the token value")
		}
	})

	t.Run("clear tokens empties the cache", func(t *testing.T) {
		g := newTestGateway(t)
		g.cache.Cache("tok", "fms.example.com", "Sales", "api")

		result, err := g.handlerFor(ToolClearTokens)(context.Background(),
			callRequest("fm_clear_tokens", nil))
		if err != nil {
			t.Fatal(err)
		}
		if result.IsError {
			t.Fatalf("clear failed: %s", resultText(t, result))
		}
		if g.cache.Stats().TotalCached != 0 {
			t.Error("expected an empty cache after clear")
		}
	})
}
