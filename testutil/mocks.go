package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockYouTubeServer creates a test server that mocks YouTube Data API responses
type MockYouTubeServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockYouTubeServer creates a new mock YouTube API server
func NewMockYouTubeServer(t *testing.T) *MockYouTubeServer {
	t.Helper()
	m := &MockYouTubeServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *MockYouTubeServer) respond(path string, payload map[string]any) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // test mock response
	}
}

// MockVideoDetails adds a handler for the /videos endpoint returning one video
// with the given live chat id and start time.
func (m *MockYouTubeServer) MockVideoDetails(videoID, chatID, startTime string) {
	item := map[string]any{
		"id": videoID,
		"liveStreamingDetails": map[string]any{
			"activeLiveChatId": chatID,
			"actualStartTime":  startTime,
		},
	}
	m.respond("/videos", map[string]any{"items": []map[string]any{item}})
}

// MockNoVideo adds a /videos handler returning an empty item list.
func (m *MockYouTubeServer) MockNoVideo() {
	m.respond("/videos", map[string]any{"items": []map[string]any{}})
}

// MockSearchResults adds a handler for the /search endpoint returning the given
// video ids as live results.
func (m *MockYouTubeServer) MockSearchResults(videoIDs ...string) {
	items := make([]map[string]any, 0, len(videoIDs))
	for _, id := range videoIDs {
		items = append(items, map[string]any{"id": map[string]any{"videoId": id}})
	}
	m.respond("/search", map[string]any{"items": items})
}

// MessageItem builds one liveChatMessage resource for MockMessagesPage.
func MessageItem(id, msgType, author, content, publishedAt string) map[string]any {
	return map[string]any{
		"id": id,
		"snippet": map[string]any{
			"type":           msgType,
			"publishedAt":    publishedAt,
			"displayMessage": content,
		},
		"authorDetails": map[string]any{
			"channelId":   "UC" + author,
			"displayName": author,
		},
	}
}

// MockMessagesPage adds a handler for the /liveChat/messages endpoint.
func (m *MockYouTubeServer) MockMessagesPage(items []map[string]any, nextPageToken string, pollingMillis int64) {
	m.respond("/liveChat/messages", map[string]any{
		"items":                 items,
		"nextPageToken":         nextPageToken,
		"pollingIntervalMillis": pollingMillis,
	})
}

// MockAPIError adds a handler for path responding with a YouTube error envelope.
func (m *MockYouTubeServer) MockAPIError(path string, code int, message string) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"error": map[string]any{
				"code":    code,
				"message": message,
				"errors":  []map[string]any{{"message": message, "reason": "test"}},
			},
		})
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint.
func (m *MockYouTubeServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.respond("/token", map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    expiresIn,
		"token_type":    "Bearer",
	})
}

// MockTokenInfoResponse adds a handler for the token introspection endpoint.
func (m *MockYouTubeServer) MockTokenInfoResponse(expiresIn int) {
	m.respond("/tokeninfo", map[string]any{"expires_in": expiresIn})
}
