// Package auth persists the guardian identity issued at registration and
// turns it into relay and API credentials.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNoIdentity is returned by Load when no identity has been saved.
var ErrNoIdentity = errors.New("no guardian identity stored")

// Guardian is the identity returned by registration.
type Guardian struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token,omitempty"`
	Name  string `yaml:"name,omitempty"`
	Phone string `yaml:"phone,omitempty"`
}

// Validate checks that the identity can be used to connect.
func (g Guardian) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("guardian id is required")
	}
	return nil
}

// Header returns the handshake and API headers for this guardian. It is
// empty when no token was issued.
func (g Guardian) Header() http.Header {
	h := http.Header{}
	if g.Token != "" {
		h.Set("Authorization", "Bearer "+g.Token)
	}
	return h
}

// Save writes the identity to path, readable only by the owner.
func Save(path string, g Guardian) error {
	if err := g.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace identity file: %w", err)
	}
	return nil
}

// Load reads the identity at path. A missing file yields ErrNoIdentity.
func Load(path string) (Guardian, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Guardian{}, ErrNoIdentity
	}
	if err != nil {
		return Guardian{}, fmt.Errorf("read identity file: %w", err)
	}

	var g Guardian
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Guardian{}, fmt.Errorf("parse identity file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return Guardian{}, fmt.Errorf("identity file %s: %w", path, err)
	}
	return g, nil
}

// Clear removes the stored identity. Clearing a missing identity is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove identity file: %w", err)
	}
	return nil
}
