package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/onnwee/ytlivechat/crypto"
)

// Token is the raw token blob returned by the token endpoint. It is kept as a
// map so fields the bot does not interpret (scope, token_type, id_token)
// survive persistence round trips unchanged.
type Token map[string]any

// AccessToken returns the bearer token, or "" when absent.
func (t Token) AccessToken() string { return t.str("access_token") }

// RefreshToken returns the refresh token, or "" when absent.
func (t Token) RefreshToken() string { return t.str("refresh_token") }

// ExpiresIn returns the remaining validity in seconds. JSON decoding and the
// introspection endpoint produce different numeric representations, so all of
// them are accepted.
func (t Token) ExpiresIn() (int, bool) {
	switch v := t["expires_in"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// SetExpiresIn overwrites the locally cached validity with an authoritative
// value.
func (t Token) SetExpiresIn(seconds int) { t["expires_in"] = seconds }

func (t Token) str(key string) string {
	if s, ok := t[key].(string); ok {
		return s
	}
	return ""
}

// Store persists a token blob as JSON on disk, optionally encrypted at rest
// with AES-256-GCM when ENCRYPTION_KEY is set.
type Store struct {
	Path      string
	encryptor crypto.Encryptor
}

// NewStore builds a file-backed token store. If ENCRYPTION_KEY holds a valid
// base64 256-bit key, blobs are encrypted before they hit the disk.
func NewStore(path string) *Store {
	s := &Store{Path: path}
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		return s
	}
	enc, err := crypto.NewAESEncryptor(key)
	if err != nil {
		slog.Error("invalid ENCRYPTION_KEY, storing tokens in plaintext", slog.Any("err", err))
		return s
	}
	s.encryptor = enc
	slog.Info("token-at-rest encryption enabled (AES-256-GCM)")
	return s
}

// Exists reports whether a persisted token blob is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path)
	return err == nil && !info.IsDir()
}

// Save writes the full token blob to stable storage.
func (s *Store) Save(t Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if s.encryptor != nil {
		enc, err := crypto.EncryptString(s.encryptor, string(raw))
		if err != nil {
			return fmt.Errorf("encrypt tokens: %w", err)
		}
		raw = []byte(enc)
	}
	if err := os.WriteFile(s.Path, raw, 0o600); err != nil {
		return fmt.Errorf("write tokens file: %w", err)
	}
	return nil
}

// Load reads the persisted token blob. The error satisfies
// errors.Is(err, os.ErrNotExist) when no blob has been saved yet.
func (s *Store) Load() (Token, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}
	if s.encryptor != nil {
		dec, err := crypto.DecryptString(s.encryptor, string(raw))
		if err != nil {
			return nil, fmt.Errorf("decrypt tokens: %w", err)
		}
		raw = []byte(dec)
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse tokens file %s: %w", s.Path, err)
	}
	return t, nil
}
