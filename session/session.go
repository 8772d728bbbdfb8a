// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Package session binds the connection registry and token cache into a
// single credential context for authenticated Data API calls, and wraps
// those calls with a bounded retry-on-unauthorized cycle.
package session

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/fmclient"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/tokens"
)

// MaxRetryAttempts bounds re-authentication after an unauthorized failure.
// The second failure after a fresh login is a hard failure, not a transient
// one: looping further would spin forever on revoked credentials.
const MaxRetryAttempts = 2

// Authenticator opens and closes Data API sessions. *fmclient.Client
// implements it; tests substitute fakes.
type Authenticator interface {
	Login(ctx context.Context, p connections.Profile) (string, error)
	Logout(ctx context.Context, p connections.Profile, token string) error
}

// NoActiveConnectionError reports an authenticated operation attempted with
// no current connection set.
type NoActiveConnectionError struct{}

func (e *NoActiveConnectionError) Error() string {
	return "no active connection: add and switch to a connection first"
}

// Manager resolves the active profile to a valid session token, caching
// tokens per identity triple and re-authenticating when the cache comes up
// empty.
type Manager struct {
	registry *connections.Registry
	cache    *tokens.Cache
	auth     Authenticator
	logger   *log.Logger
	onRetry  func()
}

// NewManager wires a manager over its collaborators.
func NewManager(registry *connections.Registry, cache *tokens.Cache, auth Authenticator) *Manager {
	return &Manager{
		registry: registry,
		cache:    cache,
		auth:     auth,
		logger:   log.New(os.Stderr, "[FM_SESSION] ", log.LstdFlags),
	}
}

// SetRetryHook installs a callback invoked once per re-authentication
// cycle. The gateway uses it to count retries in its metrics.
func (m *Manager) SetRetryHook(hook func()) {
	m.onRetry = hook
}

// CurrentProfile returns a snapshot of the active connection profile.
func (m *Manager) CurrentProfile() (connections.Profile, error) {
	profile, ok := m.registry.GetCurrent()
	if !ok {
		return connections.Profile{}, &NoActiveConnectionError{}
	}
	return profile, nil
}

// Token returns a valid session token for the active connection, opening a
// new session when the cache has no usable entry. The returned profile is
// the snapshot the token belongs to; callers keep using it even if the
// current connection is switched mid-flight.
func (m *Manager) Token(ctx context.Context) (string, connections.Profile, error) {
	profile, err := m.CurrentProfile()
	if err != nil {
		return "", connections.Profile{}, err
	}

	if token, ok := m.cache.Get(profile.Server, profile.Database, profile.User); ok {
		return token, profile, nil
	}

	token, err := m.authenticate(ctx, profile)
	if err != nil {
		return "", connections.Profile{}, err
	}
	return token, profile, nil
}

// authenticate opens a session for the profile and caches its token.
func (m *Manager) authenticate(ctx context.Context, profile connections.Profile) (string, error) {
	token, err := m.auth.Login(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("authentication failed for %s/%s: %w", profile.Server, profile.Database, err)
	}

	m.cache.Cache(token, profile.Server, profile.Database, profile.User)
	return token, nil
}

// Logout closes the active connection's server-side session, if one is
// cached, and drops the cached token either way.
func (m *Manager) Logout(ctx context.Context) error {
	profile, err := m.CurrentProfile()
	if err != nil {
		return err
	}

	token, ok := m.cache.Get(profile.Server, profile.Database, profile.User)
	m.cache.Invalidate(profile.Server, profile.Database, profile.User)

	if !ok {
		return nil
	}
	if err := m.auth.Logout(ctx, profile, token); err != nil {
		return fmt.Errorf("logout failed for %s/%s: %w", profile.Server, profile.Database, err)
	}

	m.logger.Printf("Logged out of %s/%s", profile.Server, profile.Database)
	return nil
}

// Operation is an authenticated Data API call. The profile is the snapshot
// the token was issued for.
type Operation[T any] func(ctx context.Context, profile connections.Profile, token string) (T, error)

// RunWithAuthRetry executes an operation with a valid session token. An
// unauthorized failure invalidates the cached token, re-authenticates, and
// replays the operation, at most MaxRetryAttempts times; the final failure
// propagates the operation's own error with its cause intact. Any other
// failure is terminal immediately.
func RunWithAuthRetry[T any](ctx context.Context, m *Manager, op Operation[T]) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		token, profile, err := m.Token(ctx)
		if err != nil {
			return zero, err
		}

		result, err := op(ctx, profile, token)
		if err == nil {
			return result, nil
		}

		if !fmclient.IsUnauthorized(err) || attempt >= MaxRetryAttempts {
			return zero, err
		}

		m.logger.Printf("Session rejected for %s/%s, re-authenticating (attempt %d/%d)",
			profile.Server, profile.Database, attempt+1, MaxRetryAttempts)
		m.cache.Invalidate(profile.Server, profile.Database, profile.User)
		if m.onRetry != nil {
			m.onRetry()
		}
	}
}

// RunWithAuthRetryVoid is RunWithAuthRetry for operations without a result.
func RunWithAuthRetryVoid(ctx context.Context, m *Manager, op func(ctx context.Context, profile connections.Profile, token string) error) error {
	_, err := RunWithAuthRetry(ctx, m, func(ctx context.Context, profile connections.Profile, token string) (struct{}, error) {
		return struct{}{}, op(ctx, profile, token)
	})
	return err
}
