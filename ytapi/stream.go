package ytapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/onnwee/ytlivechat/chat"
)

// StreamByID looks a stream up by its video id and requires it to carry an
// active live chat.
func (c *Client) StreamByID(ctx context.Context, streamID string) (chat.Stream, error) {
	q := url.Values{}
	q.Set("part", "liveStreamingDetails")
	q.Set("id", streamID)
	body, err := c.get(ctx, "/videos", q)
	if err != nil {
		return chat.Stream{}, err
	}

	var out struct {
		Items []struct {
			ID                   string `json:"id"`
			LiveStreamingDetails struct {
				ActiveLiveChatID string    `json:"activeLiveChatId"`
				ActualStartTime  time.Time `json:"actualStartTime"`
			} `json:"liveStreamingDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return chat.Stream{}, fmt.Errorf("decode video details: %w", err)
	}
	if len(out.Items) == 0 {
		return chat.Stream{}, fmt.Errorf("no video found for id %s: %w", streamID, ErrChannelNotLive)
	}

	item := out.Items[0]
	if item.LiveStreamingDetails.ActiveLiveChatID == "" {
		return chat.Stream{}, fmt.Errorf("stream %s has no active chat: %w", streamID, ErrChannelNotLive)
	}
	stream, err := chat.NewStream(item.ID, item.LiveStreamingDetails.ActiveLiveChatID, item.LiveStreamingDetails.ActualStartTime)
	if err != nil {
		return chat.Stream{}, err
	}
	slog.Info("retrieved stream info", slog.String("stream_id", stream.ID))
	return stream, nil
}

// ActiveStream searches for the channel's currently live broadcast and
// resolves it into a stream with a usable chat id.
func (c *Client) ActiveStream(ctx context.Context, channelID string) (chat.Stream, error) {
	q := url.Values{}
	q.Set("channelId", channelID)
	q.Set("eventType", "live")
	q.Set("type", "video")
	body, err := c.get(ctx, "/search", q)
	if err != nil {
		return chat.Stream{}, err
	}

	var out struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return chat.Stream{}, fmt.Errorf("decode search results: %w", err)
	}
	if len(out.Items) == 0 {
		return chat.Stream{}, fmt.Errorf("channel %s: %w", channelID, ErrChannelNotLive)
	}

	streamID := out.Items[0].ID.VideoID
	slog.Info("retrieved id of currently live stream", slog.String("stream_id", streamID))
	return c.StreamByID(ctx, streamID)
}
