// Package cli implements wkfctl's session persistence and HTTP client,
// adapted from the reference CLI's client package: the same bearer-token-
// plus-custom-CA-pool shape, but a loaded Session struct instead of
// package-level vars, and YAML persistence instead of an in-memory-only
// token that dies with the process.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Session is the CLI's persisted state: which server to talk to and the
// bearer token login obtained from it.
type Session struct {
	ServerURL  string `yaml:"serverUrl"`
	Token      string `yaml:"token"`
	CACertPath string `yaml:"caCertPath,omitempty"`
}

// sessionPath returns ~/.wkfctl.yaml, per SPEC_FULL.md's ambient CLI
// configuration section.
func sessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wkfctl.yaml"), nil
}

// LoadSession reads the persisted session, returning a zero-value Session
// (not an error) if none exists yet.
func LoadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("cli: parsing %s: %w", path, err)
	}
	return s, nil
}

// Save persists s to ~/.wkfctl.yaml, creating it with owner-only
// permissions since it carries a bearer token.
func (s Session) Save() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
