// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Package config resolves gateway configuration from an optional YAML file
// layered under environment variables. Values in the file may reference
// environment variables with ${VAR} or ${VAR:-default} syntax.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
)

const (
	// TransportStdio serves MCP over stdin/stdout.
	TransportStdio = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP = "http"

	// DefaultListenAddr is the HTTP transport bind address.
	DefaultListenAddr = ":8080"

	// DefaultRequestTimeout bounds each upstream Data API call.
	DefaultRequestTimeout = 30 * time.Second

	configFileEnvVar = "FM_GATEWAY_CONFIG"
)

// Config is the resolved gateway configuration.
type Config struct {
	// StorageDir holds the connection registry and token cache files.
	StorageDir string

	Transport      string
	ListenAddr     string
	TLSSkipVerify  bool
	RequestTimeout time.Duration

	// JWTSecret, when set, requires a signed bearer token on every HTTP
	// transport request. Empty disables transport auth (stdio deployments).
	JWTSecret string

	AllowedOrigins []string

	// BootstrapProfile is an inline connection taken from FM_* environment
	// variables, applied as the current connection at startup when complete.
	BootstrapProfile *connections.Profile
}

// fileConfig is the YAML file shape.
type fileConfig struct {
	Version          string   `yaml:"version"`
	StorageDir       string   `yaml:"storage_dir,omitempty"`
	Transport        string   `yaml:"transport,omitempty"`
	ListenAddr       string   `yaml:"listen_addr,omitempty"`
	TLSSkipVerify    bool     `yaml:"tls_skip_verify,omitempty"`
	RequestTimeoutMs int      `yaml:"request_timeout_ms,omitempty"`
	JWTSecret        string   `yaml:"jwt_secret,omitempty"`
	AllowedOrigins   []string `yaml:"allowed_origins,omitempty"`

	Connection struct {
		Server   string `yaml:"server,omitempty"`
		Version  string `yaml:"version,omitempty"`
		Database string `yaml:"database,omitempty"`
		User     string `yaml:"user,omitempty"`
		Password string `yaml:"password,omitempty"`
	} `yaml:"connection,omitempty"`
}

// Load resolves the configuration. Order of precedence, lowest first:
// built-in defaults, YAML file (FM_GATEWAY_CONFIG or a default location),
// environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Transport:      TransportStdio,
		ListenAddr:     DefaultListenAddr,
		RequestTimeout: DefaultRequestTimeout,
		AllowedOrigins: []string{"*"},
	}

	dir, err := defaultStorageDir()
	if err != nil {
		return nil, err
	}
	cfg.StorageDir = dir

	if path := findConfigFile(); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.Transport != TransportStdio && cfg.Transport != TransportHTTP {
		return nil, fmt.Errorf("invalid transport %q: must be %q or %q",
			cfg.Transport, TransportStdio, TransportHTTP)
	}

	return cfg, nil
}

// defaultStorageDir is a per-user directory for the persisted stores.
func defaultStorageDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve user config directory: %w", err)
	}
	return filepath.Join(base, "fm-gateway"), nil
}

// findConfigFile returns the config file path from FM_GATEWAY_CONFIG or the
// first default location that exists.
func findConfigFile() string {
	if path := os.Getenv(configFileEnvVar); path != "" {
		return path
	}
	for _, path := range []string{
		"./fm-gateway.yaml",
		"/etc/fm-gateway/fm-gateway.yaml",
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyFile layers a YAML config file over the current values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal([]byte(ExpandEnvVars(string(data))), &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.StorageDir != "" {
		c.StorageDir = file.StorageDir
	}
	if file.Transport != "" {
		c.Transport = file.Transport
	}
	if file.ListenAddr != "" {
		c.ListenAddr = file.ListenAddr
	}
	if file.TLSSkipVerify {
		c.TLSSkipVerify = true
	}
	if file.RequestTimeoutMs > 0 {
		c.RequestTimeout = time.Duration(file.RequestTimeoutMs) * time.Millisecond
	}
	if file.JWTSecret != "" {
		c.JWTSecret = file.JWTSecret
	}
	if len(file.AllowedOrigins) > 0 {
		c.AllowedOrigins = file.AllowedOrigins
	}

	if file.Connection.Server != "" {
		c.BootstrapProfile = &connections.Profile{
			Server:   file.Connection.Server,
			Version:  file.Connection.Version,
			Database: file.Connection.Database,
			User:     file.Connection.User,
			Password: file.Connection.Password,
		}
	}

	return nil
}

// applyEnv layers environment variables over the current values.
func (c *Config) applyEnv() {
	if dir := os.Getenv("FM_GATEWAY_DIR"); dir != "" {
		c.StorageDir = dir
	}
	if transport := os.Getenv("FM_GATEWAY_TRANSPORT"); transport != "" {
		c.Transport = transport
	}
	if addr := os.Getenv("FM_GATEWAY_LISTEN"); addr != "" {
		c.ListenAddr = addr
	}
	if os.Getenv("FM_TLS_SKIP_VERIFY") == "true" {
		c.TLSSkipVerify = true
	}
	if secret := os.Getenv("FM_GATEWAY_JWT_SECRET"); secret != "" {
		c.JWTSecret = secret
	}
	if origins := os.Getenv("FM_GATEWAY_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		c.AllowedOrigins = parts
	}

	if server := os.Getenv("FM_SERVER"); server != "" {
		c.BootstrapProfile = &connections.Profile{
			Server:   server,
			Version:  os.Getenv("FM_VERSION"),
			Database: os.Getenv("FM_DATABASE"),
			User:     os.Getenv("FM_USER"),
			Password: os.Getenv("FM_PASSWORD"),
		}
	}
}

// envVarRegex matches ${VAR_NAME} references, with an optional :-default.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars replaces ${VAR} and ${VAR:-default} references with the
// environment's values. An undefined variable without a default expands to
// the empty string.
func ExpandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]

		defaultVal := ""
		if idx := strings.Index(name, ":-"); idx != -1 {
			defaultVal = name[idx+2:]
			name = name[:idx]
		}

		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultVal
	})
}
