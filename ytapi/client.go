// Package ytapi contains a minimal client for the YouTube Data API read
// paths the bot needs: resolving a live stream, finding its chat room, and
// polling the paginated live chat messages endpoint with an API key.
package ytapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ErrChannelNotLive marks the recoverable absence of an active broadcast or
// chat room, as opposed to a transport failure.
var ErrChannelNotLive = errors.New("channel is not live")

// HTTPError is any API-reported failure envelope, carrying the status code
// the API classified the failure with.
type HTTPError struct {
	Code int
	Body string
}

func (e *HTTPError) Error() string { return fmt.Sprintf("%d: %s", e.Code, e.Body) }

// IsClientError reports whether the code is in the non-retryable 4xx range.
func (e *HTTPError) IsClientError() bool { return e.Code >= 400 && e.Code < 500 }

// apiError mirrors the two envelope shapes the API uses: a message list on
// the read paths and a bare message on the write path.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *apiError) text() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Message
	}
	return e.Message
}

// Client issues API-key authorized GET requests.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

// get performs a GET against path, translating any error envelope in the
// body into an *HTTPError before the caller touches any success field.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	q.Set("key", c.APIKey)
	u := c.base() + path + "?" + q.Encode()
	slog.Debug("making request", slog.String("path", path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &HTTPError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("decode response from %s: %w", path, err)
	}
	if envelope.Error != nil {
		return nil, &HTTPError{Code: envelope.Error.Code, Body: envelope.Error.text()}
	}
	return body, nil
}
