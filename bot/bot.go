// Package bot wires the pieces together: it owns the shared network session,
// the resolved stream, the event bus, and the token lifecycle, and runs the
// three cooperative tasks of a session (poll loop, event processor, token
// auto-refresh) until the context is cancelled or the poll loop hits a
// non-retryable error.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/onnwee/ytlivechat/chat"
	"github.com/onnwee/ytlivechat/events"
	"github.com/onnwee/ytlivechat/oauth"
	"github.com/onnwee/ytlivechat/telemetry"
	"github.com/onnwee/ytlivechat/ytapi"
)

const tracerName = "github.com/onnwee/ytlivechat/bot"

// tokensFile is persisted next to the secrets file.
const tokensFile = "tokens.json"

var (
	// ErrMissingChannelID is returned by New when no channel id is provided.
	ErrMissingChannelID = errors.New("a channel ID must be provided")

	// ErrNoSession is returned when an operation needs the network session
	// before Run has created it.
	ErrNoSession = errors.New("there is no active session")

	// ErrNoStream is returned when an operation needs stream info before it
	// has been fetched.
	ErrNoStream = errors.New("stream info has not been fetched")
)

// Bot is the facade over the poll loop, event bus, stream resolver, outbound
// sender, and token lifecycle.
type Bot struct {
	apiKey    string
	channelID string
	baseURL   string

	events     *events.Bus
	flow       *oauth.Flow
	session    *http.Client
	api        *ytapi.Client
	clientOpts []option.ClientOption
	retryDelay time.Duration

	mu     sync.RWMutex
	stream *chat.Stream
	yt     *youtube.Service
}

// Option configures a Bot.
type Option func(*Bot)

// WithBaseURL overrides the API root, primarily for tests.
func WithBaseURL(u string) Option { return func(b *Bot) { b.baseURL = u } }

// WithSession presets the HTTP client instead of letting Run create one.
func WithSession(c *http.Client) Option { return func(b *Bot) { b.session = c } }

// WithClientOptions appends options for the outbound send service, e.g. an
// endpoint override in tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(b *Bot) { b.clientOpts = append(b.clientOpts, opts...) }
}

// New builds a bot for one channel. The API key authorizes the read paths;
// write operations additionally need UseSecrets plus Authorise.
func New(apiKey, channelID string, opts ...Option) (*Bot, error) {
	if channelID == "" {
		return nil, ErrMissingChannelID
	}
	b := &Bot{
		apiKey:     apiKey,
		channelID:  channelID,
		baseURL:    ytapi.DefaultBaseURL,
		events:     events.NewBus(),
		retryDelay: pollRetryDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	// The queue exists from the start so events dispatched before Run, such
	// as the Authorised event from a pre-run Authorise, are held until
	// Process begins draining.
	b.events.CreateQueue()
	return b, nil
}

// Events exposes the bus for subscriptions.
func (b *Bot) Events() *events.Bus { return b.events }

// Platform names the backing chat platform.
func (b *Bot) Platform() string { return "youtube" }

// Stream returns the resolved stream, if any.
func (b *Bot) Stream() (chat.Stream, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stream == nil {
		return chat.Stream{}, false
	}
	return *b.stream, true
}

// Flow exposes the token lifecycle, or nil before UseSecrets.
func (b *Bot) Flow() *oauth.Flow { return b.flow }

// UseSecrets loads client credentials from a secrets file and attaches a
// token lifecycle persisting its blob next to it. Token changes are
// re-published as Authorised events. Extra flow options are applied after the
// bot's own wiring.
func (b *Bot) UseSecrets(path string, opts ...oauth.Option) error {
	secrets, err := oauth.LoadSecrets(path)
	if err != nil {
		return err
	}
	store := oauth.NewStore(filepath.Join(secrets.Dir(), tokensFile))
	flowOpts := append([]oauth.Option{
		oauth.WithTokenHook(func(sec *oauth.Secrets, tokens oauth.Token) {
			if err := b.events.Dispatch(events.Authorised{Secrets: sec, Tokens: tokens}); err != nil {
				slog.Debug("authorised event not dispatched", slog.Any("err", err))
			}
		}),
	}, opts...)
	b.flow = oauth.NewFlow(secrets, store, flowOpts...)
	if b.session != nil {
		b.flow.UseClient(b.session)
	}
	return nil
}

// Authorise delegates to the token lifecycle. See oauth.Flow.Authorise.
func (b *Bot) Authorise(ctx context.Context, force bool) error {
	if b.flow == nil {
		return oauth.ErrNoSecrets
	}
	return b.flow.Authorise(ctx, force)
}

// createSession builds the one network session shared by the poll loop, the
// stream resolver, the sender, and the token flow.
func (b *Bot) createSession() {
	if b.session == nil {
		b.session = &http.Client{Timeout: 30 * time.Second}
		slog.Info("new session created")
	}
	b.api = &ytapi.Client{BaseURL: b.baseURL, APIKey: b.apiKey, HTTPClient: b.session}
	if b.flow != nil {
		b.flow.UseClient(b.session)
	}
}

// FetchStreamInfo resolves the session's stream: by explicit stream id when
// given, otherwise by searching the channel for a live broadcast. The result
// is held for the life of the session and announced as a StreamFetched event.
func (b *Bot) FetchStreamInfo(ctx context.Context, streamID string) error {
	if b.api == nil {
		return ErrNoSession
	}
	ctx, span := telemetry.StartSpan(ctx, tracerName, "stream.resolve")
	defer span.End()

	var (
		stream chat.Stream
		err    error
	)
	if streamID != "" {
		stream, err = b.api.StreamByID(ctx, streamID)
	} else {
		stream, err = b.api.ActiveStream(ctx, b.channelID)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanSuccess(span)

	b.mu.Lock()
	b.stream = &stream
	b.mu.Unlock()
	return b.events.Dispatch(events.StreamFetched{Stream: stream})
}

// Run drives one session to completion: create the session, resolve the
// stream, then run the poll loop, the event processor, and (when
// authorised) the token auto-refresh concurrently. It returns nil on clean
// cancellation and the causing error when the poll loop dies.
func (b *Bot) Run(ctx context.Context, streamID string) error {
	slog.Info("starting bot", slog.String("platform", b.Platform()))
	b.createSession()
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())

	if err := b.FetchStreamInfo(ctx, streamID); err != nil {
		b.close()
		return err
	}
	if err := b.events.Dispatch(events.Ready{}); err != nil {
		b.close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.events.Process(gctx) })
	g.Go(func() error { return b.poll(gctx) })
	if b.flow != nil && b.flow.Authorised() {
		var delay time.Duration
		if n, ok := b.flow.Token().ExpiresIn(); ok && n > 0 {
			delay = time.Duration(n) * time.Second
		}
		g.Go(func() error { return b.flow.AutoRefresh(gctx, delay) })
	}

	err := g.Wait()
	b.close()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("a critical error occurred, the bot cannot continue", slog.Any("err", err))
		return err
	}
	slog.Info("bot stopped")
	return nil
}

// close releases the network session after all tasks have wound down.
func (b *Bot) close() {
	if b.session != nil {
		b.session.CloseIdleConnections()
		slog.Info("session closed")
	}
}
