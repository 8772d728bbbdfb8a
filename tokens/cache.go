// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Package tokens caches FileMaker Data API session tokens keyed by the
// (server, database, user) identity triple.
//
// Tokens survive process restarts through a JSON file in the gateway's
// storage directory, written with owner-only permissions after every
// mutation. Reads are expiry-aware: a token inside the refresh buffer is
// reported as absent so callers re-authenticate instead of riding a token
// that is about to die mid-operation. The file carries no cross-process
// locking; concurrent gateways sharing a storage directory race last-writer-
// wins.
package tokens

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultTTL mirrors the Data API's 15-minute idle session lifetime.
	DefaultTTL = 15 * time.Minute

	// ExpiryBuffer is the trailing window before hard expiry during which a
	// token is treated as needing refresh even though technically valid.
	ExpiryBuffer = 5 * time.Minute

	// CacheFileName is the cache file name inside the storage directory.
	CacheFileName = "tokens.json"

	cacheFileMode = 0o600
)

// Entry is one cached session token with its expiry metadata. Timestamps are
// epoch milliseconds on disk.
type Entry struct {
	Token        string `json:"token"`
	Server       string `json:"server"`
	Database     string `json:"database"`
	User         string `json:"user"`
	ExpiresAt    int64  `json:"expiresAt"`
	CreatedAt    int64  `json:"createdAt"`
	RefreshCount int    `json:"refreshCount"`
}

// Info is the token-free view of a cache entry, safe to log or return to a
// caller.
type Info struct {
	Server       string        `json:"server"`
	Database     string        `json:"database"`
	User         string        `json:"user"`
	CreatedAt    time.Time     `json:"createdAt"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	ExpiresIn    time.Duration `json:"expiresIn"`
	RefreshCount int           `json:"refreshCount"`
}

// Stats counts cache entries by raw expiry, without the refresh buffer.
type Stats struct {
	TotalCached   int `json:"totalCached"`
	ValidTokens   int `json:"validTokens"`
	ExpiredTokens int `json:"expiredTokens"`
}

type cacheFile struct {
	Tokens    map[string]Entry `json:"tokens"`
	LastSaved string           `json:"lastSaved"`
}

// Cache holds session tokens per identity triple. At most one entry exists
// per triple; caching a new token replaces the prior entry wholesale.
type Cache struct {
	path    string
	entries map[string]Entry
	mu      sync.Mutex
	logger  *log.Logger
}

// Key returns the cache key for an identity triple, the literal
// colon-joined concatenation used on disk.
func Key(server, database, user string) string {
	return server + ":" + database + ":" + user
}

// NewCache creates a cache backed by CacheFileName inside dir. Persisted
// entries are loaded and any already past hard expiry are swept immediately;
// a corrupt file starts the cache empty instead of failing startup.
func NewCache(dir string) *Cache {
	c := &Cache{
		path:    filepath.Join(dir, CacheFileName),
		entries: make(map[string]Entry),
		logger:  log.New(os.Stderr, "[FM_TOKENS] ", log.LstdFlags),
	}
	c.load()
	return c
}

// Cache stores a token for the identity triple with the default lifetime,
// replacing any existing entry. Use CacheWithTTL for an explicit lifetime.
func (c *Cache) Cache(token, server, database, user string) {
	c.CacheWithTTL(token, server, database, user, DefaultTTL)
}

// CacheWithTTL stores a token with an explicit lifetime. The entry's creation
// time and refresh counter reset; the cache persists before returning.
func (c *Cache) CacheWithTTL(token, server, database, user string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[Key(server, database, user)] = Entry{
		Token:        token,
		Server:       server,
		Database:     database,
		User:         user,
		ExpiresAt:    now.Add(ttl).UnixMilli(),
		CreatedAt:    now.UnixMilli(),
		RefreshCount: 0,
	}

	c.persist()
}

// Get returns the cached token for the triple, or false when there is none.
// An entry past hard expiry is deleted on the spot. An entry inside the
// refresh buffer also reads as absent: callers must re-authenticate rather
// than reuse a token about to expire.
func (c *Cache) Get(server, database, user string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(server, database, user)
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}

	now := time.Now()
	expiresAt := time.UnixMilli(entry.ExpiresAt)

	if now.After(expiresAt) {
		delete(c.entries, key)
		c.persist()
		return "", false
	}

	if expiresAt.Sub(now) < ExpiryBuffer {
		return "", false
	}

	return entry.Token, true
}

// NeedsRefresh reports whether an entry exists and sits inside the refresh
// buffer. Absence is not "needs refresh": there is nothing to refresh.
func (c *Cache) NeedsRefresh(server, database, user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(server, database, user)]
	if !ok {
		return false
	}

	return time.Until(time.UnixMilli(entry.ExpiresAt)) < ExpiryBuffer
}

// Refresh extends an existing entry's expiry and increments its refresh
// counter, leaving the token value and creation time unchanged. A missing
// entry is a no-op.
func (c *Cache) Refresh(server, database, user string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := Key(server, database, user)
	entry, ok := c.entries[key]
	if !ok {
		return
	}

	entry.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	entry.RefreshCount++
	c.entries[key] = entry

	c.persist()
}

// Invalidate removes the entry for the triple if present. It persists only
// when something was actually removed.
func (c *Cache) Invalidate(server, database, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(server, database, user)
	if _, ok := c.entries[key]; !ok {
		return
	}

	delete(c.entries, key)
	c.persist()
}

// GetInfo returns expiry metadata for the triple without the token value.
func (c *Cache) GetInfo(server, database, user string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(server, database, user)]
	if !ok {
		return Info{}, false
	}

	expiresAt := time.UnixMilli(entry.ExpiresAt)
	expiresIn := time.Until(expiresAt)
	if expiresIn < 0 {
		expiresIn = 0
	}

	return Info{
		Server:       entry.Server,
		Database:     entry.Database,
		User:         entry.User,
		CreatedAt:    time.UnixMilli(entry.CreatedAt),
		ExpiresAt:    expiresAt,
		ExpiresIn:    expiresIn,
		RefreshCount: entry.RefreshCount,
	}, true
}

// Stats counts entries against raw expiry. No buffer applies here; this is a
// hard-expiry census, distinct from the buffered Get/NeedsRefresh reads.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{TotalCached: len(c.entries)}
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(time.UnixMilli(entry.ExpiresAt)) {
			stats.ExpiredTokens++
		} else {
			stats.ValidTokens++
		}
	}
	return stats
}

// ClearAll empties the cache and removes the persisted file entirely.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		c.logger.Printf("Warning: failed to remove %s: %v", c.path, err)
	}
}

// persist writes the cache to disk. Callers hold the mutex.
func (c *Cache) persist() {
	file := cacheFile{
		Tokens:    c.entries,
		LastSaved: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		c.logger.Printf("Warning: failed to encode token cache: %v", err)
		return
	}

	if err := writeSecure(c.path, data); err != nil {
		c.logger.Printf("Warning: %v", err)
	}
}

// load reads the persisted cache and sweeps hard-expired entries, persisting
// the cleaned set when anything was dropped.
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Printf("Warning: failed to read %s: %v", c.path, err)
		}
		return
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		c.logger.Printf("Warning: corrupt token cache %s, starting empty: %v", c.path, err)
		return
	}

	if file.Tokens != nil {
		c.entries = file.Tokens
	}

	now := time.Now()
	swept := 0
	for key, entry := range c.entries {
		if now.After(time.UnixMilli(entry.ExpiresAt)) {
			delete(c.entries, key)
			swept++
		}
	}
	if swept > 0 {
		c.logger.Printf("Swept %d expired token(s) at startup", swept)
		c.persist()
	}
}

// writeSecure writes data atomically with owner-only permissions re-applied
// on every write.
func writeSecure(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, cacheFileMode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	if err := os.Chmod(path, cacheFileMode); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	return nil
}
