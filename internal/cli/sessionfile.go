// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taibuivan/storefront/internal/session"
)

// ErrSignedOut is returned when no session file exists.
var ErrSignedOut = errors.New("not signed in; run 'shopctl login'")

// Saved is the on-disk form of a terminal sign-in.
type Saved struct {
	// Cookie is the opaque session cookie issued by the BFF.
	Cookie  string           `json:"cookie"`
	Session *session.Session `json:"session"`
}

// SessionFile persists [Saved] with owner-only permissions.
type SessionFile struct {
	path string
}

// NewSessionFile creates a store at path. Nothing is touched until Save.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Path returns the file location.
func (file *SessionFile) Path() string {
	return file.path
}

// Load reads the saved sign-in. A missing file yields [ErrSignedOut].
func (file *SessionFile) Load() (*Saved, error) {
	raw, err := os.ReadFile(file.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSignedOut
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var saved Saved
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", file.path, err)
	}
	if saved.Cookie == "" || saved.Session == nil {
		return nil, ErrSignedOut
	}
	return &saved, nil
}

// Save writes saved atomically through a temp file in the same directory.
func (file *SessionFile) Save(saved *Saved) error {
	if err := os.MkdirAll(filepath.Dir(file.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	raw, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(file.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), file.path)
}

// Remove deletes the file. Removing a missing file is not an error.
func (file *SessionFile) Remove() error {
	if err := os.Remove(file.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
