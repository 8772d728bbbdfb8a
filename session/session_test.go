// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/fmclient"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/tokens"
)

// fakeAuth counts sessions opened and closed, handing out sequential tokens.
type fakeAuth struct {
	logins   int
	logouts  int
	loginErr error
}

func (f *fakeAuth) Login(ctx context.Context, p connections.Profile) (string, error) {
	f.logins++
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return fmt.Sprintf("token-%d", f.logins), nil
}

func (f *fakeAuth) Logout(ctx context.Context, p connections.Profile, token string) error {
	f.logouts++
	return nil
}

func newTestManager(t *testing.T) (*Manager, *fakeAuth, *connections.Registry) {
	t.Helper()

	registry := connections.NewRegistry(t.TempDir())
	cache := tokens.NewCache(t.TempDir())
	auth := &fakeAuth{}
	return NewManager(registry, cache, auth), auth, registry
}

func activate(t *testing.T, registry *connections.Registry) {
	t.Helper()

	profile := connections.Profile{
		Server:   "fms.example.com",
		Database: "Sales",
		User:     "api",
		Password: "secret",
	}
	if err := registry.AddNamed("prod", profile); err != nil {
		t.Fatal(err)
	}
	if err := registry.SwitchTo("prod"); err != nil {
		t.Fatal(err)
	}
}

func unauthorized() error {
	return &fmclient.UnauthorizedError{
		Cause: &fmclient.APIError{StatusCode: http.StatusUnauthorized, Code: "952", Message: "Invalid FileMaker Data API token"},
	}
}

func TestTokenUsesCache(t *testing.T) {
	m, auth, registry := newTestManager(t)
	activate(t, registry)

	first, _, err := m.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := m.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("expected the cached token to be reused, got %s then %s", first, second)
	}
	if auth.logins != 1 {
		t.Errorf("expected a single login, got %d", auth.logins)
	}
}

func TestTokenWithoutActiveConnection(t *testing.T) {
	m, auth, _ := newTestManager(t)

	_, _, err := m.Token(context.Background())
	var noConn *NoActiveConnectionError
	if !errors.As(err, &noConn) {
		t.Fatalf("expected NoActiveConnectionError, got %v", err)
	}
	if auth.logins != 0 {
		t.Error("no login attempt should happen without an active connection")
	}
}

func TestTokenLoginFailure(t *testing.T) {
	m, auth, registry := newTestManager(t)
	activate(t, registry)

	cause := errors.New("connection refused")
	auth.loginErr = cause

	_, _, err := m.Token(context.Background())
	if !errors.Is(err, cause) {
		t.Errorf("expected the login cause to be wrapped, got %v", err)
	}
}

func TestRunWithAuthRetry(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		m, auth, registry := newTestManager(t)
		activate(t, registry)

		calls := 0
		result, err := RunWithAuthRetry(context.Background(), m, func(ctx context.Context, p connections.Profile, token string) (string, error) {
			calls++
			return "ok:" + token, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if result != "ok:token-1" {
			t.Errorf("unexpected result %s", result)
		}
		if calls != 1 || auth.logins != 1 {
			t.Errorf("expected 1 call and 1 login, got %d calls, %d logins", calls, auth.logins)
		}
	})

	t.Run("stale token recovers once", func(t *testing.T) {
		m, auth, registry := newTestManager(t)
		activate(t, registry)

		calls := 0
		result, err := RunWithAuthRetry(context.Background(), m, func(ctx context.Context, p connections.Profile, token string) (int, error) {
			calls++
			if calls == 1 {
				return 0, unauthorized()
			}
			return 42, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if result != 42 {
			t.Errorf("expected 42, got %d", result)
		}
		if calls != 2 {
			t.Errorf("expected 2 operation calls, got %d", calls)
		}
		if auth.logins != 2 {
			t.Errorf("expected a login per attempt, got %d", auth.logins)
		}
	})

	t.Run("persistent rejection re-authenticates exactly twice", func(t *testing.T) {
		m, auth, registry := newTestManager(t)
		activate(t, registry)

		retries := 0
		m.SetRetryHook(func() { retries++ })

		calls := 0
		opErr := unauthorized()
		_, err := RunWithAuthRetry(context.Background(), m, func(ctx context.Context, p connections.Profile, token string) (int, error) {
			calls++
			return 0, opErr
		})

		if err == nil {
			t.Fatal("expected the rejection to propagate")
		}
		// First login plus one per re-authentication cycle.
		if auth.logins != 1+MaxRetryAttempts {
			t.Errorf("expected %d logins, got %d", 1+MaxRetryAttempts, auth.logins)
		}
		if retries != MaxRetryAttempts {
			t.Errorf("expected exactly %d re-authentications, got %d", MaxRetryAttempts, retries)
		}
		if calls != 1+MaxRetryAttempts {
			t.Errorf("expected %d operation calls, got %d", 1+MaxRetryAttempts, calls)
		}

		// The caller sees the operation's own error, cause intact.
		var unauth *fmclient.UnauthorizedError
		if !errors.As(err, &unauth) {
			t.Fatalf("expected UnauthorizedError, got %v", err)
		}
		if unauth.Cause.Code != "952" {
			t.Errorf("expected cause code 952, got %s", unauth.Cause.Code)
		}
	})

	t.Run("other errors are terminal", func(t *testing.T) {
		m, auth, registry := newTestManager(t)
		activate(t, registry)

		calls := 0
		boom := errors.New("layout missing")
		_, err := RunWithAuthRetry(context.Background(), m, func(ctx context.Context, p connections.Profile, token string) (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the operation error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("non-auth failures must not be retried, got %d calls", calls)
		}
		if auth.logins != 1 {
			t.Errorf("expected a single login, got %d", auth.logins)
		}
	})

	t.Run("no active connection", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		_, err := RunWithAuthRetry(context.Background(), m, func(ctx context.Context, p connections.Profile, token string) (int, error) {
			t.Fatal("operation must not run without a connection")
			return 0, nil
		})
		var noConn *NoActiveConnectionError
		if !errors.As(err, &noConn) {
			t.Fatalf("expected NoActiveConnectionError, got %v", err)
		}
	})
}

func TestRunWithAuthRetryVoid(t *testing.T) {
	m, _, registry := newTestManager(t)
	activate(t, registry)

	ran := false
	err := RunWithAuthRetryVoid(context.Background(), m, func(ctx context.Context, p connections.Profile, token string) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("operation did not run")
	}
}

func TestLogout(t *testing.T) {
	t.Run("closes session and drops token", func(t *testing.T) {
		m, auth, registry := newTestManager(t)
		activate(t, registry)

		if _, _, err := m.Token(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := m.Logout(context.Background()); err != nil {
			t.Fatal(err)
		}
		if auth.logouts != 1 {
			t.Errorf("expected one server-side logout, got %d", auth.logouts)
		}

		// The next operation opens a fresh session.
		if _, _, err := m.Token(context.Background()); err != nil {
			t.Fatal(err)
		}
		if auth.logins != 2 {
			t.Errorf("expected a new login after logout, got %d", auth.logins)
		}
	})

	t.Run("without a cached token", func(t *testing.T) {
		m, auth, registry := newTestManager(t)
		activate(t, registry)

		if err := m.Logout(context.Background()); err != nil {
			t.Fatal(err)
		}
		if auth.logouts != 0 {
			t.Error("no server-side logout without a cached token")
		}
	})

	t.Run("without an active connection", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		err := m.Logout(context.Background())
		var noConn *NoActiveConnectionError
		if !errors.As(err, &noConn) {
			t.Fatalf("expected NoActiveConnectionError, got %v", err)
		}
	})
}
