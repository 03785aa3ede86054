package oauth

import (
	"os"
	"path/filepath"
	"testing"
)

const secretsJSON = `{
	"installed": {
		"client_id": "client-1",
		"project_id": "project-1",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"client_secret": "hush",
		"redirect_uris": ["urn:ietf:wg:oauth:2.0:oob", "http://localhost"]
	}
}`

func writeSecretsFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
	return path
}

func TestLoadSecrets(t *testing.T) {
	path := writeSecretsFile(t, secretsJSON)

	s, err := LoadSecrets(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ClientID != "client-1" || s.ClientSecret != "hush" || s.ProjectID != "project-1" {
		t.Fatalf("unexpected secrets: %+v", s)
	}
	if s.Path() != path {
		t.Fatalf("Path() = %q, want %q", s.Path(), path)
	}
	if s.Dir() != filepath.Dir(path) {
		t.Fatalf("Dir() = %q", s.Dir())
	}
	if got := s.RedirectURI(); got != "urn:ietf:wg:oauth:2.0:oob" {
		t.Fatalf("RedirectURI() = %q", got)
	}
}

func TestLoadSecretsErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadSecrets(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("no installed client", func(t *testing.T) {
		path := writeSecretsFile(t, `{"web": {"client_id": "x"}}`)
		if _, err := LoadSecrets(path); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("malformed json", func(t *testing.T) {
		path := writeSecretsFile(t, `{"installed":`)
		if _, err := LoadSecrets(path); err == nil {
			t.Fatal("expected error")
		}
	})
}
