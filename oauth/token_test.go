package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTokenExpiresIn(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{name: "int", in: 3600, want: 3600, ok: true},
		{name: "float64", in: float64(1800), want: 1800, ok: true},
		{name: "json number", in: json.Number("-42"), want: -42, ok: true},
		{name: "string", in: "900", want: 900, ok: true},
		{name: "garbage string", in: "soon", ok: false},
		{name: "absent", in: nil, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := Token{}
			if tc.in != nil {
				tok["expires_in"] = tc.in
			}
			got, ok := tok.ExpiresIn()
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTokenPreservesUnknownKeys(t *testing.T) {
	var tok Token
	raw := `{"access_token":"a","refresh_token":"r","expires_in":100,"scope":"s1 s2","id_token":"opaque"}`
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tok.AccessToken() != "a" || tok.RefreshToken() != "r" {
		t.Fatalf("unexpected token: %v", tok)
	}
	if tok["scope"] != "s1 s2" || tok["id_token"] != "opaque" {
		t.Fatal("unknown keys must survive decoding")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := NewStore(path)
	if s.Exists() {
		t.Fatal("store should not exist before Save")
	}

	tok := Token{"access_token": "a", "refresh_token": "r", "expires_in": float64(100), "scope": "s1"}
	if err := s.Save(tok); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !s.Exists() {
		t.Fatal("store should exist after Save")
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AccessToken() != "a" || loaded.RefreshToken() != "r" || loaded["scope"] != "s1" {
		t.Fatalf("unexpected loaded token: %v", loaded)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "tokens.json"))
	if _, err := s.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestStoreEncryptsAtRest(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(key))

	path := filepath.Join(t.TempDir(), "tokens.json")
	s := NewStore(path)
	if err := s.Save(Token{"access_token": "super-secret"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(raw), "super-secret") {
		t.Fatal("token written in plaintext despite ENCRYPTION_KEY")
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AccessToken() != "super-secret" {
		t.Fatalf("round trip lost the access token: %v", loaded)
	}
}
