// Package oauth manages the bot's OAuth 2 credentials: the client secrets
// file, the persisted token blob, the authorization-code and refresh-token
// grants, and the background auto-refresh task.
package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrNoSecrets is returned when an operation that needs client credentials is
// attempted before any have been configured.
var ErrNoSecrets = errors.New("no OAuth secrets have been provided")

// Secrets holds the client credentials loaded from the `installed` object of
// a Google client secrets file. Immutable for the process lifetime.
type Secrets struct {
	ClientID                string   `json:"client_id"`
	ProjectID               string   `json:"project_id"`
	AuthURI                 string   `json:"auth_uri"`
	TokenURI                string   `json:"token_uri"`
	AuthProviderX509CertURL string   `json:"auth_provider_x509_cert_url"`
	ClientSecret            string   `json:"client_secret"`
	RedirectURIs            []string `json:"redirect_uris"`

	path string
}

// LoadSecrets reads a client secrets JSON file and unwraps its `installed`
// object.
func LoadSecrets(path string) (*Secrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	var wrapper struct {
		Installed *Secrets `json:"installed"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	s := wrapper.Installed
	if s == nil || s.ClientID == "" {
		return nil, fmt.Errorf("secrets file %s has no installed client", path)
	}
	s.path = path
	slog.Info("loaded secrets", slog.String("path", path), slog.String("project", s.ProjectID))
	return s, nil
}

// Path returns the location the secrets were loaded from, or "" if the value
// was constructed directly.
func (s *Secrets) Path() string { return s.path }

// Dir returns the directory holding the secrets file. Token blobs are
// persisted next to it.
func (s *Secrets) Dir() string { return filepath.Dir(s.path) }

// RedirectURI returns the first configured redirect URI.
func (s *Secrets) RedirectURI() string {
	if len(s.RedirectURIs) == 0 {
		return ""
	}
	return s.RedirectURIs[0]
}
