// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Package connections manages named FileMaker connection profiles, the
// current active profile, and the default profile used at startup.
//
// Named profiles are persisted to a JSON file under the gateway's storage
// directory with owner-only permissions. The current profile is transient and
// handed out by value, so switching connections never alters the credentials
// an in-flight operation already holds. The file is not locked across
// processes; two gateways sharing a storage directory can lose updates to
// each other. This is a known constraint of a single-operator tool.
package connections

import (
	"log"
	"os"
	"path/filepath"
	"sync"
)

// RegistryFileName is the registry file name inside the storage directory.
const RegistryFileName = "connections.json"

// Registry owns the persisted set of named connection profiles, the default
// pointer, and the transient current profile. All mutating operations are
// atomic with respect to the on-disk file: a failed validation or duplicate
// check leaves it untouched.
type Registry struct {
	path        string
	profiles    map[string]Profile
	defaultName string
	current     *Profile
	mu          sync.RWMutex
	logger      *log.Logger
}

// NewRegistry creates a registry backed by RegistryFileName inside dir and
// loads any persisted state. A corrupt or unreadable file starts the registry
// empty rather than failing construction.
func NewRegistry(dir string) *Registry {
	r := &Registry{
		path:     filepath.Join(dir, RegistryFileName),
		profiles: make(map[string]Profile),
		logger:   log.New(os.Stderr, "[FM_REGISTRY] ", log.LstdFlags),
	}
	r.load()
	return r
}

// AddNamed validates and stores a profile under name, then persists the
// registry. The stored profile's Name field is overwritten to match name.
func (r *Registry) AddNamed(name string, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return &ValidationError{Fields: []string{"name is required"}}
	}
	if _, exists := r.profiles[name]; exists {
		return &DuplicateConnectionError{Name: name}
	}
	if errs := profile.Validate(); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	profile.Name = name
	r.profiles[name] = profile

	if err := r.save(); err != nil {
		delete(r.profiles, name)
		return err
	}

	r.logger.Printf("Added connection '%s' (%s/%s)", name, profile.Server, profile.Database)
	return nil
}

// Remove deletes a named profile and persists. If the profile was the default
// it clears the default pointer; if it was current, the current profile is
// cleared as well.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, exists := r.profiles[name]
	if !exists {
		return &NotFoundError{Name: name}
	}

	prevDefault := r.defaultName
	delete(r.profiles, name)
	if r.defaultName == name {
		r.defaultName = ""
	}

	if err := r.save(); err != nil {
		r.profiles[name] = profile
		r.defaultName = prevDefault
		return err
	}

	if r.current != nil && r.current.Name == name {
		r.current = nil
	}

	r.logger.Printf("Removed connection '%s'", name)
	return nil
}

// SwitchTo makes the named profile current. The current profile is a value
// snapshot of the registry entry; later mutation of the entry does not alter
// an active session's credentials. The current pointer is transient and is
// not persisted.
func (r *Registry) SwitchTo(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, exists := r.profiles[name]
	if !exists {
		return &NotFoundError{Name: name}
	}

	snapshot := profile
	r.current = &snapshot

	r.logger.Printf("Switched to connection '%s'", name)
	return nil
}

// SetCurrentInline makes an ad-hoc profile current without naming or
// persisting it.
func (r *Registry) SetCurrentInline(profile Profile) error {
	if errs := profile.Validate(); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	profile.Name = ""
	r.current = &profile

	r.logger.Printf("Using inline connection (%s/%s)", profile.Server, profile.Database)
	return nil
}

// SetDefault persists name as the profile that becomes current at startup.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[name]; !exists {
		return &NotFoundError{Name: name}
	}

	prev := r.defaultName
	r.defaultName = name

	if err := r.save(); err != nil {
		r.defaultName = prev
		return err
	}

	r.logger.Printf("Default connection set to '%s'", name)
	return nil
}

// GetCurrent returns a snapshot of the current profile, or false when no
// connection is active.
func (r *Registry) GetCurrent() (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return Profile{}, false
	}
	return *r.current, true
}

// GetDefault resolves the default pointer against the registry. It returns
// false when the pointer is absent or dangling.
func (r *Registry) GetDefault() (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		return Profile{}, false
	}
	profile, ok := r.profiles[r.defaultName]
	return profile, ok
}

// GetDefaultName returns the persisted default connection name, or empty
// when none is set.
func (r *Registry) GetDefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// GetConnection returns the named profile by value.
func (r *Registry) GetConnection(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[name]
	return profile, ok
}

// List returns all named profiles. Order is not significant.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		list = append(list, profile)
	}
	return list
}

// Exists reports whether a named profile is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.profiles[name]
	return ok
}

// Count returns the number of named profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
