package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/onnwee/ytlivechat/chat"
	"github.com/onnwee/ytlivechat/events"
	"github.com/onnwee/ytlivechat/oauth"
	"github.com/onnwee/ytlivechat/telemetry"
	"github.com/onnwee/ytlivechat/ytapi"
)

// sendParts are requested on insert so the echoed resource carries enough to
// rebuild a Message.
var sendParts = []string{"id", "snippet", "authorDetails"}

// youtubeService lazily builds the Data API service for the write path. The
// bearer token rides on an oauth2 transport layered over the shared session.
func (b *Bot) youtubeService(ctx context.Context) (*youtube.Service, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.yt != nil {
		return b.yt, nil
	}
	if b.flow == nil {
		return nil, oauth.ErrNotAuthorised
	}
	var base http.RoundTripper
	if b.session != nil {
		base = b.session.Transport
	}
	authClient := &http.Client{Transport: &oauth2.Transport{Source: b.flow.TokenSource(), Base: base}}
	opts := append([]option.ClientOption{option.WithHTTPClient(authClient)}, b.clientOpts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	b.yt = svc
	return svc, nil
}

// SendMessage posts a text message to the connected chat and announces the
// echoed resource as a MessageSent event. There is no retry; the caller
// decides whether to resend.
func (b *Bot) SendMessage(ctx context.Context, content string) (chat.Message, error) {
	if b.session == nil {
		return chat.Message{}, ErrNoSession
	}
	stream, ok := b.Stream()
	if !ok {
		return chat.Message{}, ErrNoStream
	}
	svc, err := b.youtubeService(ctx)
	if err != nil {
		return chat.Message{}, err
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "chat.send",
		attribute.String("chat_id", stream.ChatID))
	defer span.End()

	res, err := svc.LiveChatMessages.Insert(sendParts, &youtube.LiveChatMessage{
		Snippet: &youtube.LiveChatMessageSnippet{
			Type:               "textMessageEvent",
			LiveChatId:         stream.ChatID,
			TextMessageDetails: &youtube.LiveChatTextMessageDetails{MessageText: content},
		},
	}).Context(ctx).Do()
	if err != nil {
		telemetry.Inc(telemetry.SendErrors)
		telemetry.RecordError(span, err)
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return chat.Message{}, &ytapi.HTTPError{Code: apiErr.Code, Body: apiErr.Message}
		}
		return chat.Message{}, err
	}

	msg, err := messageFromResource(res, stream)
	if err != nil {
		telemetry.RecordError(span, err)
		return chat.Message{}, err
	}
	if err := b.events.Dispatch(events.MessageSent{Message: msg}); err != nil {
		return msg, err
	}
	telemetry.Inc(telemetry.MessagesSent)
	telemetry.SetSpanSuccess(span)
	return msg, nil
}

// messageFromResource rebuilds a domain Message from the resource echoed by
// the insert call.
func messageFromResource(res *youtube.LiveChatMessage, stream chat.Stream) (chat.Message, error) {
	if res == nil || res.Snippet == nil {
		return chat.Message{}, fmt.Errorf("send response has no snippet")
	}
	mt, err := chat.ParseMessageType(res.Snippet.Type)
	if err != nil {
		return chat.Message{}, err
	}
	published, err := time.Parse(time.RFC3339Nano, res.Snippet.PublishedAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("parse publishedAt: %w", err)
	}
	var channel chat.Channel
	if a := res.AuthorDetails; a != nil {
		channel = chat.Channel{
			ID:          a.ChannelId,
			URL:         a.ChannelUrl,
			Name:        a.DisplayName,
			AvatarURL:   a.ProfileImageUrl,
			IsVerified:  a.IsVerified,
			IsOwner:     a.IsChatOwner,
			IsSponsor:   a.IsChatSponsor,
			IsModerator: a.IsChatModerator,
		}
	}
	content := res.Snippet.DisplayMessage
	if content == "" && res.Snippet.TextMessageDetails != nil {
		content = res.Snippet.TextMessageDetails.MessageText
	}
	return chat.Message{
		ID:          res.Id,
		Type:        mt,
		Stream:      stream,
		Channel:     channel,
		PublishedAt: published,
		Content:     content,
	}, nil
}
