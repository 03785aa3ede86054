package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/ytlivechat/chat"
	"github.com/onnwee/ytlivechat/events"
	"github.com/onnwee/ytlivechat/telemetry"
	"github.com/onnwee/ytlivechat/ytapi"
)

// pollRetryDelay is the default backoff after a transient poll failure. The
// normal cadence between successful polls is dictated by the server.
const pollRetryDelay = 5 * time.Second

// poll repeatedly fetches chat pages and turns them into events. It only
// stops on cancellation or on a 4xx API error, which signals a request that
// will not self-correct through retry. Transient failures keep the page
// cursor intact and retry after a fixed delay.
func (b *Bot) poll(ctx context.Context) error {
	stream, ok := b.Stream()
	if !ok {
		return ErrNoStream
	}
	log := telemetry.LoggerWithCorr(ctx)

	pageToken := ""
	for {
		next, err := b.pollOnce(ctx, stream, &pageToken)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			telemetry.Inc(telemetry.PollErrors)
			var httpErr *ytapi.HTTPError
			if errors.As(err, &httpErr) && httpErr.IsClientError() {
				log.Error("received 4xx error, cannot continue", slog.Any("err", err))
				return err
			}
			log.Error("ignoring error during polling",
				slog.Any("err", err), slog.Duration("retry_in", b.retryDelay))
			next = b.retryDelay
		}
		if err := sleep(ctx, next); err != nil {
			return err
		}
	}
}

// pollOnce performs one iteration: fetch the page at the current cursor,
// announce the raw payload, emit per-message events in page order, and
// advance the cursor. It returns the server-requested delay before the next
// poll.
func (b *Bot) pollOnce(ctx context.Context, stream chat.Stream, pageToken *string) (time.Duration, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "chat.poll",
		attribute.String("chat_id", stream.ChatID))
	defer span.End()

	start := time.Now()
	page, err := b.api.LiveChatMessages(ctx, stream.ChatID, *pageToken)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	telemetry.Inc(telemetry.Polls)
	telemetry.ObservePollDuration(time.Since(start))

	if err := b.events.Dispatch(events.ChatPolled{Data: page.Raw}); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	// The first page after connecting is pre-existing history: announce the
	// poll, advance the cursor, but do not replay old messages.
	if *pageToken != "" && len(page.Items) > 0 {
		telemetry.LoggerWithCorr(ctx).Info("processing new messages", slog.Int("count", len(page.Items)))
		for _, item := range page.Items {
			msg, err := ytapi.MessageFromItem(item, stream)
			if err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("skipping malformed chat item",
					slog.String("id", item.ID), slog.Any("err", err))
				continue
			}
			if err := b.events.Dispatch(events.MessageCreated{Message: msg}); err != nil {
				telemetry.RecordError(span, err)
				return 0, err
			}
			telemetry.Inc(telemetry.MessagesReceived)
		}
	}

	*pageToken = page.NextPageToken
	telemetry.SetSpanSuccess(span)
	return page.PollingInterval, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
