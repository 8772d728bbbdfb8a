// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	ListenAddr     string
	AllowedOrigins []string

	// JWTSecret, when non-empty, requires every /mcp request to carry a
	// bearer token signed with it (HMAC).
	JWTSecret string
}

// NewHTTPHandler builds the HTTP transport: streamable MCP at /mcp, health
// at /healthz, Prometheus metrics at /metrics, all behind CORS.
func (g *Gateway) NewHTTPHandler(s *server.MCPServer, opts HTTPOptions) http.Handler {
	router := mux.NewRouter()

	var mcpHandler http.Handler = server.NewStreamableHTTPServer(s)
	if opts.JWTSecret != "" {
		mcpHandler = jwtMiddleware(opts.JWTSecret, mcpHandler)
	}
	router.PathPrefix("/mcp").Handler(mcpHandler)

	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return corsMiddleware.Handler(router)
}

// ServeHTTP blocks serving the transport on the configured address.
func (g *Gateway) ServeHTTP(s *server.MCPServer, opts HTTPOptions) error {
	handler := g.NewHTTPHandler(s, opts)
	g.logger.Printf("Serving MCP over HTTP on %s", opts.ListenAddr)

	srv := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": ServerName,
		"version": ServerVersion,
	})
}

// jwtMiddleware rejects requests without a valid HMAC-signed bearer token.
func jwtMiddleware(secret string, next http.Handler) http.Handler {
	key := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
