package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// tokenServer fakes the token and introspection endpoints.
type tokenServer struct {
	*httptest.Server

	introspectExpiresIn int
	rejectRefresh       bool

	grants []url.Values
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	s := &tokenServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.grants = append(s.grants, r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		switch r.PostFormValue("grant_type") {
		case "refresh_token":
			if s.rejectRefresh {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh", "expires_in": 3600})
		case "authorization_code":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "new", "refresh_token": "new-rt", "expires_in": 3600})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expires_in": ` + strconv.Itoa(s.introspectExpiresIn) + `}`))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *tokenServer) secrets() *Secrets {
	return &Secrets{
		ClientID:     "client-1",
		ClientSecret: "hush",
		AuthURI:      s.URL + "/auth",
		TokenURI:     s.URL + "/token",
		RedirectURIs: []string{"urn:ietf:wg:oauth:2.0:oob"},
	}
}

func newTestFlow(t *testing.T, srv *tokenServer, stored Token, opts ...Option) *Flow {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "tokens.json"))
	if stored != nil {
		if err := store.Save(stored); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithIntrospectURL(srv.URL + "/tokeninfo"),
		WithPrompt(func(authURL string) (string, error) {
			t.Fatalf("interactive prompt used unexpectedly for %s", authURL)
			return "", nil
		}),
	}
	return NewFlow(srv.secrets(), store, append(base, opts...)...)
}

func TestAuthoriseUsesValidStoredToken(t *testing.T) {
	srv := newTokenServer(t)
	srv.introspectExpiresIn = 1234
	f := newTestFlow(t, srv, Token{"access_token": "a", "refresh_token": "r", "expires_in": float64(5)})

	if f.Authorised() {
		t.Fatal("flow should not be authorised before Authorise")
	}
	if err := f.Authorise(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Token().AccessToken() != "a" {
		t.Fatalf("access token = %q, want a", f.Token().AccessToken())
	}
	// The introspected validity overwrites the stale cached one and is
	// persisted.
	if n, ok := f.Token().ExpiresIn(); !ok || n != 1234 {
		t.Fatalf("expires_in = %d (%v), want 1234", n, ok)
	}
	saved, err := f.store.Load()
	if err != nil {
		t.Fatalf("load persisted blob: %v", err)
	}
	if n, _ := saved.ExpiresIn(); n != 1234 {
		t.Fatalf("persisted expires_in = %d, want 1234", n)
	}
	if len(srv.grants) != 0 {
		t.Fatalf("no token grant expected, got %v", srv.grants)
	}

	tok, err := f.TokenSource().Token()
	if err != nil {
		t.Fatalf("token source: %v", err)
	}
	if tok.AccessToken != "a" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected oauth2 token: %+v", tok)
	}
}

func TestAuthoriseRefreshesExpiredToken(t *testing.T) {
	srv := newTokenServer(t)
	srv.introspectExpiresIn = -10

	var hooked Token
	f := newTestFlow(t, srv, Token{"access_token": "stale", "refresh_token": "r"},
		WithTokenHook(func(_ *Secrets, tokens Token) { hooked = tokens }))

	if err := f.Authorise(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Token().AccessToken() != "fresh" {
		t.Fatalf("access token = %q, want fresh", f.Token().AccessToken())
	}
	// The token endpoint omits the refresh token from refresh responses, so
	// the old one must be carried over.
	if f.Token().RefreshToken() != "r" {
		t.Fatalf("refresh token = %q, want r", f.Token().RefreshToken())
	}
	if hooked == nil || hooked.AccessToken() != "fresh" {
		t.Fatalf("token hook saw %v", hooked)
	}
	if len(srv.grants) != 1 || srv.grants[0].Get("grant_type") != "refresh_token" {
		t.Fatalf("unexpected grants: %v", srv.grants)
	}
}

func TestAuthoriseFallsBackToInteractive(t *testing.T) {
	srv := newTokenServer(t)
	srv.introspectExpiresIn = -10
	srv.rejectRefresh = true

	f := newTestFlow(t, srv, Token{"access_token": "stale", "refresh_token": "r"},
		WithPrompt(func(authURL string) (string, error) { return "the-code", nil }))

	if err := f.Authorise(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Token().AccessToken() != "new" || f.Token().RefreshToken() != "new-rt" {
		t.Fatalf("unexpected token after fallback: %v", f.Token())
	}
	if len(srv.grants) != 2 {
		t.Fatalf("expected refresh then code exchange, got %v", srv.grants)
	}
	code := srv.grants[1]
	if code.Get("grant_type") != "authorization_code" || code.Get("code") != "the-code" {
		t.Fatalf("unexpected code exchange form: %v", code)
	}
	if code.Get("redirect_uri") != "urn:ietf:wg:oauth:2.0:oob" {
		t.Fatalf("redirect_uri = %q", code.Get("redirect_uri"))
	}
}

func TestAuthoriseForceIsAlwaysInteractive(t *testing.T) {
	srv := newTokenServer(t)
	srv.introspectExpiresIn = 9999

	prompted := false
	f := newTestFlow(t, srv, Token{"access_token": "a", "refresh_token": "r"},
		WithPrompt(func(authURL string) (string, error) {
			prompted = true
			if !strings.Contains(authURL, "client_id=client-1") {
				t.Fatalf("auth URL missing client id: %s", authURL)
			}
			if !strings.Contains(authURL, "access_type=offline") {
				t.Fatalf("auth URL missing offline access: %s", authURL)
			}
			return "the-code", nil
		}))

	if err := f.Authorise(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prompted {
		t.Fatal("force authorise must run the interactive exchange")
	}
	if f.Token().AccessToken() != "new" {
		t.Fatalf("access token = %q, want new", f.Token().AccessToken())
	}
}

func TestAuthoriseWithoutStoredBlob(t *testing.T) {
	srv := newTokenServer(t)
	f := newTestFlow(t, srv, nil,
		WithPrompt(func(authURL string) (string, error) { return "the-code", nil }))

	if err := f.Authorise(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Authorised() {
		t.Fatal("flow should be authorised after the code exchange")
	}
	if !f.store.Exists() {
		t.Fatal("token blob should have been persisted")
	}
}

func TestAuthoriseWithoutSecrets(t *testing.T) {
	f := NewFlow(nil, NewStore(filepath.Join(t.TempDir(), "tokens.json")))
	if err := f.Authorise(context.Background(), false); !errors.Is(err, ErrNoSecrets) {
		t.Fatalf("expected ErrNoSecrets, got %v", err)
	}
}

func TestTokenSourceBeforeAuthorise(t *testing.T) {
	srv := newTokenServer(t)
	f := newTestFlow(t, srv, nil)
	if _, err := f.TokenSource().Token(); !errors.Is(err, ErrNotAuthorised) {
		t.Fatalf("expected ErrNotAuthorised, got %v", err)
	}
}

func TestStateIsUnique(t *testing.T) {
	a := State()
	time.Sleep(time.Microsecond)
	b := State()
	if len(a) != 64 {
		t.Fatalf("state length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Fatal("two states derived at different instants should differ")
	}
}
