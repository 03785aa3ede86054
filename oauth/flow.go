package oauth

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/ytlivechat/telemetry"
)

// DefaultIntrospectURL is the token-introspection endpoint used to probe the
// remaining validity of a persisted access token.
const DefaultIntrospectURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"

// Scopes requested during the authorization-code grant.
var Scopes = []string{"https://www.googleapis.com/auth/youtube"}

// refreshInterval is the fixed cadence of the background auto-refresh task.
const refreshInterval = time.Hour

var (
	// ErrRefreshFailed is returned when the token endpoint rejects a
	// refresh-token grant. Authorise falls back to the interactive exchange.
	ErrRefreshFailed = errors.New("token refresh was rejected")

	// ErrNotAuthorised is returned when a bearer token is needed but none has
	// been acquired.
	ErrNotAuthorised = errors.New("the bot has not been authorised")
)

// CodePrompt asks the operator to visit authURL and paste back the one-time
// authorization code.
type CodePrompt func(authURL string) (string, error)

// TokenHook observes every successful token acquisition or refresh, after the
// blob has been persisted.
type TokenHook func(secrets *Secrets, tokens Token)

// State derives an anti-replay state token from a hash of the current time.
func State() string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	return hex.EncodeToString(sum[:])
}

// Flow owns the token lifecycle: loading or acquiring a token blob, keeping
// it fresh, persisting every mutation, and exposing the current bearer token
// to the send path.
type Flow struct {
	secrets       *Secrets
	store         *Store
	client        *http.Client
	introspectURL string
	prompt        CodePrompt
	onToken       TokenHook

	mu    sync.RWMutex
	token Token
}

// Option configures a Flow.
type Option func(*Flow)

// WithHTTPClient sets the HTTP client used for token-endpoint requests.
func WithHTTPClient(c *http.Client) Option { return func(f *Flow) { f.client = c } }

// WithIntrospectURL overrides the token-introspection endpoint.
func WithIntrospectURL(u string) Option { return func(f *Flow) { f.introspectURL = u } }

// WithPrompt overrides how the one-time authorization code is collected.
func WithPrompt(p CodePrompt) Option { return func(f *Flow) { f.prompt = p } }

// WithTokenHook registers a hook invoked after every persisted token change.
func WithTokenHook(h TokenHook) Option { return func(f *Flow) { f.onToken = h } }

// NewFlow builds a token lifecycle around the given secrets and store.
func NewFlow(secrets *Secrets, store *Store, opts ...Option) *Flow {
	f := &Flow{
		secrets:       secrets,
		store:         store,
		introspectURL: DefaultIntrospectURL,
		prompt:        stdinPrompt,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// UseClient swaps the HTTP client, so the flow can share the bot's session.
func (f *Flow) UseClient(c *http.Client) { f.client = c }

// OnToken registers the token hook after construction.
func (f *Flow) OnToken(h TokenHook) { f.onToken = h }

// Secrets returns the configured client credentials.
func (f *Flow) Secrets() *Secrets { return f.secrets }

// Token returns the current token blob, or nil before authorisation.
func (f *Flow) Token() Token {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token
}

// Authorised reports whether a usable bearer token is held.
func (f *Flow) Authorised() bool {
	return f.Token().AccessToken() != ""
}

// AuthURL builds the interactive authorization URL with a fresh state token.
func (f *Flow) AuthURL() (authURL, state string) {
	cfg := f.oauthConfig()
	state = State()
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), state
}

func (f *Flow) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.secrets.ClientID,
		ClientSecret: f.secrets.ClientSecret,
		RedirectURL:  f.secrets.RedirectURI(),
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.secrets.AuthURI,
			TokenURL: f.secrets.TokenURI,
		},
	}
}

// Authorise obtains a usable token. With force false it prefers the persisted
// blob, probing its remaining validity against the introspection endpoint and
// refreshing when expired; the locally cached expires_in is never trusted.
// With force true, or when no persisted blob exists, it runs the interactive
// authorization-code exchange. A failed refresh also falls back to the
// interactive exchange rather than leaving the bot without a token.
func (f *Flow) Authorise(ctx context.Context, force bool) error {
	if f.secrets == nil {
		return ErrNoSecrets
	}
	slog.Info("authorising bot")

	if force || !f.store.Exists() {
		slog.Info("no tokens found -- authorisation required")
		return f.interactive(ctx)
	}

	tokens, err := f.store.Load()
	if err != nil {
		slog.Warn("stored tokens unreadable -- authorisation required", slog.Any("err", err))
		return f.interactive(ctx)
	}

	expiresIn, err := f.introspect(ctx, tokens.AccessToken())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("token introspection failed, treating token as expired", slog.Any("err", err))
		expiresIn = -1
	}
	tokens.SetExpiresIn(expiresIn)

	if expiresIn < 0 {
		slog.Info("token has expired -- refreshing")
		refreshed, err := f.refresh(ctx, tokens)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("token refresh failed -- manual authorisation required", slog.Any("err", err))
			return f.interactive(ctx)
		}
		tokens = refreshed
	} else {
		slog.Info("token still valid", slog.Int("expires_in_minutes", expiresIn/60))
	}

	return f.setTokens(tokens)
}

// interactive runs the full authorization-code exchange: print the auth URL,
// collect the pasted code, and trade it for a token blob.
func (f *Flow) interactive(ctx context.Context) error {
	authURL, _ := f.AuthURL()
	code, err := f.prompt(authURL)
	if err != nil {
		return fmt.Errorf("collect authorization code: %w", err)
	}
	form := url.Values{}
	form.Set("client_id", f.secrets.ClientID)
	form.Set("client_secret", f.secrets.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	form.Set("redirect_uri", f.secrets.RedirectURI())

	tokens, err := f.postForm(ctx, form)
	if err != nil {
		return fmt.Errorf("auth code exchange: %w", err)
	}
	return f.setTokens(tokens)
}

// refresh exchanges the blob's refresh token for a fresh access token. The
// refresh token itself is carried over, as the token endpoint omits it from
// refresh responses.
func (f *Flow) refresh(ctx context.Context, tokens Token) (Token, error) {
	rt := tokens.RefreshToken()
	if rt == "" {
		return nil, fmt.Errorf("%w: no refresh token held", ErrRefreshFailed)
	}
	form := url.Values{}
	form.Set("client_id", f.secrets.ClientID)
	form.Set("client_secret", f.secrets.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", rt)

	fresh, err := f.postForm(ctx, form)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	fresh["refresh_token"] = rt
	return fresh, nil
}

func (f *Flow) postForm(ctx context.Context, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.secrets.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var tokens Token
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return tokens, nil
}

// introspect asks the introspection endpoint how long the access token is
// still valid for.
func (f *Flow) introspect(ctx context.Context, accessToken string) (int, error) {
	u := f.introspectURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.http().Do(req)
	if err != nil {
		return 0, err
	}
	defer closeBody(resp)
	var body Token
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode introspection response: %w", err)
	}
	expiresIn, ok := body.ExpiresIn()
	if !ok {
		return 0, fmt.Errorf("introspection response has no expires_in")
	}
	return expiresIn, nil
}

// setTokens installs the blob, persists it, and notifies the hook. Every
// token mutation funnels through here.
func (f *Flow) setTokens(tokens Token) error {
	f.mu.Lock()
	f.token = tokens
	f.mu.Unlock()

	if err := f.store.Save(tokens); err != nil {
		return err
	}
	if f.onToken != nil {
		f.onToken(f.secrets, tokens)
	}
	return nil
}

// AutoRefresh keeps the token alive in the background: it sleeps for
// initialDelay (normally the token's own remaining lifetime), then refreshes
// and persists on a fixed hourly cadence until ctx is cancelled. A failed
// cycle is logged and retried at the next one.
func (f *Flow) AutoRefresh(ctx context.Context, initialDelay time.Duration) error {
	if err := sleep(ctx, initialDelay); err != nil {
		return err
	}
	for {
		refreshed, err := f.refresh(ctx, f.Token())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("background token refresh failed", slog.Any("err", err))
		} else if err := f.setTokens(refreshed); err != nil {
			slog.Warn("token persist failed", slog.Any("err", err))
		} else {
			telemetry.Inc(telemetry.TokenRefreshes)
			slog.Info("token refreshed -- will repeat in one hour")
		}
		if err := sleep(ctx, refreshInterval); err != nil {
			return err
		}
	}
}

// TokenSource adapts the flow into an oauth2.TokenSource for authorized HTTP
// clients.
func (f *Flow) TokenSource() oauth2.TokenSource {
	return flowTokenSource{f}
}

type flowTokenSource struct{ f *Flow }

func (s flowTokenSource) Token() (*oauth2.Token, error) {
	access := s.f.Token().AccessToken()
	if access == "" {
		return nil, ErrNotAuthorised
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}

func (f *Flow) http() *http.Client {
	if f.client != nil {
		return f.client
	}
	return http.DefaultClient
}

func stdinPrompt(authURL string) (string, error) {
	fmt.Printf("You need to authorise this session:\n%s\nPaste code here: ", authURL)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
