package chat

import (
	"errors"
	"time"
)

// ErrNoChatID is returned when a stream is constructed without a chat room
// handle. A Stream with an empty ChatID must never exist.
var ErrNoChatID = errors.New("stream has no active chat id")

// Stream identifies the live session the bot is connected to. Constructed once
// per run and held for the life of the session.
type Stream struct {
	ID        string
	ChatID    string
	StartTime time.Time
}

// NewStream validates that the chat room handle is present up front rather
// than letting an empty ChatID surface later in the poll loop.
func NewStream(id, chatID string, startTime time.Time) (Stream, error) {
	if chatID == "" {
		return Stream{}, ErrNoChatID
	}
	return Stream{ID: id, ChatID: chatID, StartTime: startTime}, nil
}
