// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Command fmgateway serves the FileMaker Data API as MCP tools over stdio
// or streamable HTTP.
package main

import (
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/config"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/fmclient"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/gateway"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/session"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/tokens"
)

func main() {
	// Stdout carries the MCP stdio transport; everything else goes to stderr.
	logger := log.New(os.Stderr, "[FM_MAIN] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	registry := connections.NewRegistry(cfg.StorageDir)
	cache := tokens.NewCache(cfg.StorageDir)
	client := fmclient.New(fmclient.Options{
		Timeout:       cfg.RequestTimeout,
		TLSSkipVerify: cfg.TLSSkipVerify,
	})
	manager := session.NewManager(registry, cache, client)

	activateStartupConnection(logger, registry, cfg)

	g := gateway.New(registry, cache, manager, client)
	s := g.NewMCPServer()

	switch cfg.Transport {
	case config.TransportHTTP:
		if err := g.ServeHTTP(s, gateway.HTTPOptions{
			ListenAddr:     cfg.ListenAddr,
			AllowedOrigins: cfg.AllowedOrigins,
			JWTSecret:      cfg.JWTSecret,
		}); err != nil {
			logger.Fatalf("http server: %v", err)
		}
	default:
		if err := server.ServeStdio(s); err != nil {
			logger.Fatalf("stdio server: %v", err)
		}
	}
}

// activateStartupConnection makes a connection current before the first tool
// call: the bootstrap profile from the environment or config file wins,
// otherwise the registry's persisted default.
func activateStartupConnection(logger *log.Logger, registry *connections.Registry, cfg *config.Config) {
	if cfg.BootstrapProfile != nil {
		if err := registry.SetCurrentInline(*cfg.BootstrapProfile); err != nil {
			logger.Printf("Warning: bootstrap connection rejected: %v", err)
		} else {
			return
		}
	}

	if name := registry.GetDefaultName(); name != "" {
		if err := registry.SwitchTo(name); err != nil {
			logger.Printf("Warning: default connection unavailable: %v", err)
		}
	}
}
