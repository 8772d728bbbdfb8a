// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package connections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// storeFileMode is the permission set applied to the registry file. The file
// holds live credentials, so group/other access is never allowed.
const storeFileMode = 0o600

// registryFile is the on-disk shape of the persisted registry.
type registryFile struct {
	Connections       map[string]Profile `json:"connections"`
	DefaultConnection string             `json:"defaultConnection,omitempty"`
}

// writeFileSecure writes data to path atomically and re-applies owner-only
// permissions. Some platforms reset mode bits on rewrite, so the chmod runs
// after every write, not just on create.
func writeFileSecure(path string, data []byte) error {
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
	if err := os.Chmod(tmpName, storeFileMode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	// Rename preserves the temp file's mode on POSIX systems, but re-apply on
	// the final path for platforms where it does not.
	if err := os.Chmod(path, storeFileMode); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	return nil
}

// save persists the registry's named profiles and default pointer. The
// transient current profile is never written.
func (r *Registry) save() error {
	file := registryFile{
		Connections:       r.profiles,
		DefaultConnection: r.defaultName,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	return writeFileSecure(r.path, data)
}

// load reads the persisted registry. A missing file yields an empty registry;
// a corrupt file is treated as empty with a warning rather than blocking
// startup.
func (r *Registry) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Printf("Warning: failed to read %s: %v", r.path, err)
		}
		return
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		r.logger.Printf("Warning: corrupt registry file %s, starting empty: %v", r.path, err)
		return
	}

	if file.Connections != nil {
		r.profiles = file.Connections
	}
	r.defaultName = file.DefaultConnection

	// A dangling default pointer resolves to none; drop it so the invariant
	// holds from the first read.
	if r.defaultName != "" {
		if _, ok := r.profiles[r.defaultName]; !ok {
			r.defaultName = ""
		}
	}
}
