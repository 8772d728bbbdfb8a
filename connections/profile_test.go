// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package connections

import (
	"testing"
)

func validProfile() Profile {
	return Profile{
		Server:   "fms.example.com",
		Version:  "v1",
		Database: "Sales",
		User:     "api",
		Password: "secret",
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Profile)
		wantErr int
	}{
		{"valid", func(p *Profile) {}, 0},
		{"missing server", func(p *Profile) { p.Server = "" }, 1},
		{"whitespace server", func(p *Profile) { p.Server = "   " }, 1},
		{"missing database", func(p *Profile) { p.Database = "" }, 1},
		{"missing user", func(p *Profile) { p.User = "" }, 1},
		{"missing password", func(p *Profile) { p.Password = "" }, 1},
		{"blank version", func(p *Profile) { p.Version = "  " }, 1},
		{"empty version is fine", func(p *Profile) { p.Version = "" }, 0},
		{"everything missing", func(p *Profile) { *p = Profile{} }, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)
			if got := len(p.Validate()); got != tt.wantErr {
				t.Errorf("expected %d violations, got %d: %v", tt.wantErr, got, p.Validate())
			}
		})
	}
}

func TestProfileAPIVersion(t *testing.T) {
	p := validProfile()
	if got := p.APIVersion(); got != "v1" {
		t.Errorf("expected v1, got %s", got)
	}

	p.Version = ""
	if got := p.APIVersion(); got != DefaultVersion {
		t.Errorf("expected %s, got %s", DefaultVersion, got)
	}
}

func TestProfileRedacted(t *testing.T) {
	p := validProfile()
	red := p.Redacted()

	if red.Password == p.Password {
		t.Error("redacted copy must not carry the real password")
	}
	if p.Password != "secret" {
		t.Error("Redacted must not mutate the receiver")
	}
	if red.Server != p.Server || red.Database != p.Database || red.User != p.User {
		t.Error("redaction must only touch the password")
	}
}
