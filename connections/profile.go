// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package connections

import (
	"fmt"
	"strings"
)

// DefaultVersion is the Data API version used when a profile does not set one.
const DefaultVersion = "vLatest"

// Profile identifies one target FileMaker database together with the
// credentials used to open Data API sessions against it. A profile is either
// named (stored in the registry and persisted) or inline (session-only,
// created by the connect tool, never written to disk).
type Profile struct {
	Name     string `json:"name,omitempty"`
	Server   string `json:"server"`
	Version  string `json:"version"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Validate checks that the profile carries every field a Data API session
// needs. It returns all violations found, not just the first.
func (p Profile) Validate() []string {
	var errs []string

	if strings.TrimSpace(p.Server) == "" {
		errs = append(errs, "server is required")
	}
	if strings.TrimSpace(p.Database) == "" {
		errs = append(errs, "database is required")
	}
	if strings.TrimSpace(p.User) == "" {
		errs = append(errs, "user is required")
	}
	if strings.TrimSpace(p.Password) == "" {
		errs = append(errs, "password is required")
	}
	if p.Version != "" && strings.TrimSpace(p.Version) == "" {
		errs = append(errs, "version must not be blank")
	}

	return errs
}

// APIVersion returns the profile's Data API version, falling back to
// DefaultVersion when unset.
func (p Profile) APIVersion() string {
	if p.Version == "" {
		return DefaultVersion
	}
	return p.Version
}

// Redacted returns a copy of the profile safe to log or surface to callers.
func (p Profile) Redacted() Profile {
	p.Password = "********"
	return p
}

// ValidationError reports one or more invalid or missing profile fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid connection profile: " + strings.Join(e.Fields, "; ")
}

// DuplicateConnectionError reports an attempt to add a named connection whose
// name is already registered.
type DuplicateConnectionError struct {
	Name string
}

func (e *DuplicateConnectionError) Error() string {
	return fmt.Sprintf("connection '%s' already exists", e.Name)
}

// NotFoundError reports a reference to a connection name that is not
// registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("connection '%s' not found", e.Name)
}
