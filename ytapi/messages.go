package ytapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/onnwee/ytlivechat/chat"
)

// messagesPart is what the poll requests per item; the id is needed to build
// a Message, so it rides along with snippet and authorDetails.
const messagesPart = "id,snippet,authorDetails"

// PageAuthor is the authorDetails object of a liveChatMessage resource.
type PageAuthor struct {
	ChannelID       string `json:"channelId"`
	ChannelURL      string `json:"channelUrl"`
	DisplayName     string `json:"displayName"`
	ProfileImageURL string `json:"profileImageUrl"`
	IsVerified      bool   `json:"isVerified"`
	IsChatOwner     bool   `json:"isChatOwner"`
	IsChatSponsor   bool   `json:"isChatSponsor"`
	IsChatModerator bool   `json:"isChatModerator"`
}

// PageItem is one liveChatMessage resource from a poll page.
type PageItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Type           string    `json:"type"`
		PublishedAt    time.Time `json:"publishedAt"`
		DisplayMessage string    `json:"displayMessage"`
	} `json:"snippet"`
	AuthorDetails PageAuthor `json:"authorDetails"`
}

// MessagesPage is one page of the live chat messages endpoint. Raw holds the
// full decoded payload for observers that want the unparsed response.
type MessagesPage struct {
	Raw             map[string]any
	Items           []PageItem
	NextPageToken   string
	PollingInterval time.Duration
}

// LiveChatMessages fetches one page of chat messages. An empty pageToken
// reads from the server's default position.
func (c *Client) LiveChatMessages(ctx context.Context, chatID, pageToken string) (*MessagesPage, error) {
	q := url.Values{}
	q.Set("liveChatId", chatID)
	q.Set("part", messagesPart)
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	body, err := c.get(ctx, "/liveChat/messages", q)
	if err != nil {
		return nil, err
	}

	var typed struct {
		Items                 []PageItem `json:"items"`
		NextPageToken         string     `json:"nextPageToken"`
		PollingIntervalMillis int64      `json:"pollingIntervalMillis"`
	}
	if err := json.Unmarshal(body, &typed); err != nil {
		return nil, fmt.Errorf("decode messages page: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode messages page: %w", err)
	}

	return &MessagesPage{
		Raw:             raw,
		Items:           typed.Items,
		NextPageToken:   typed.NextPageToken,
		PollingInterval: time.Duration(typed.PollingIntervalMillis) * time.Millisecond,
	}, nil
}

// MessageFromItem builds a domain Message from one page item. The stream is
// the session the item was observed in.
func MessageFromItem(item PageItem, stream chat.Stream) (chat.Message, error) {
	mt, err := chat.ParseMessageType(item.Snippet.Type)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:     item.ID,
		Type:   mt,
		Stream: stream,
		Channel: chat.Channel{
			ID:          item.AuthorDetails.ChannelID,
			URL:         item.AuthorDetails.ChannelURL,
			Name:        item.AuthorDetails.DisplayName,
			AvatarURL:   item.AuthorDetails.ProfileImageURL,
			IsVerified:  item.AuthorDetails.IsVerified,
			IsOwner:     item.AuthorDetails.IsChatOwner,
			IsSponsor:   item.AuthorDetails.IsChatSponsor,
			IsModerator: item.AuthorDetails.IsChatModerator,
		},
		PublishedAt: item.Snippet.PublishedAt,
		Content:     item.Snippet.DisplayMessage,
	}, nil
}
