// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Session holds the operator's console API authentication state.
// Stored at the well-known path returned by SessionFilePath and
// loaded automatically by every command that talks to the console
// API. Set up once via "parley login", then transparent.
type Session struct {
	// Handle is the operator's user handle (e.g., "dana").
	Handle string `json:"handle"`

	// Token is the bearer token proving the operator's identity to
	// the console API.
	Token string `json:"token"`

	// BaseURL is the console API root the session was established
	// against (e.g., "https://api.parley.dev"). Stored so commands
	// talk to the same deployment the operator logged in to.
	BaseURL string `json:"base_url"`
}

// SessionFilePath returns the path to the operator's session file.
// Checks the PARLEY_SESSION_FILE environment variable first, then
// falls back to $XDG_CONFIG_HOME/parley/session.json or
// ~/.config/parley/session.json.
func SessionFilePath() string {
	if envPath := os.Getenv("PARLEY_SESSION_FILE"); envPath != "" {
		return envPath
	}

	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			// Fallback, this should rarely happen.
			return filepath.Join("/tmp", "parley-session.json")
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, "parley", "session.json")
}

// LoadSession reads the operator session from the well-known path.
// Returns a clear error message directing the user to "parley login"
// if no session exists.
func LoadSession() (*Session, error) {
	return LoadSessionFrom(SessionFilePath())
}

// LoadSessionFrom reads an operator session from a specific file path.
func LoadSessionFrom(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no Parley session found at %s, run \"parley login\" first", path)
		}
		return nil, fmt.Errorf("reading session file %s: %w", path, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", path, err)
	}

	if session.Handle == "" {
		return nil, fmt.Errorf("session file %s has no handle", path)
	}
	if session.Token == "" {
		return nil, fmt.Errorf("session file %s has no token", path)
	}
	if session.BaseURL == "" {
		return nil, fmt.Errorf("session file %s has no base_url", path)
	}

	return &session, nil
}

// SaveSession writes an operator session to the well-known path.
// Creates the parent directory with mode 0700 if it doesn't exist.
// The session file is written with mode 0600 (owner-only read/write)
// since it contains a bearer token.
func SaveSession(session *Session) error {
	return SaveSessionTo(session, SessionFilePath())
}

// SaveSessionTo writes an operator session to a specific file path.
func SaveSessionTo(session *Session, path string) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", directory, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session file %s: %w", path, err)
	}

	return nil
}
