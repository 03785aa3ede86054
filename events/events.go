// Package events implements the bot's event bus: an ordered queue of typed
// events plus a subscriber table. Producers (the poll loop, the stream
// resolver, the token flow) dispatch events onto the queue; a single Process
// task drains it and invokes subscribed callbacks in registration order.
package events

import (
	"fmt"
	"strings"

	"github.com/onnwee/ytlivechat/chat"
	"github.com/onnwee/ytlivechat/oauth"
)

// Event is the closed set of values the bus carries. Events are transient:
// produced once, consumed once.
type Event interface {
	isEvent()
}

// Ready is dispatched once the bot has finished its startup wiring and is
// about to start receiving messages.
type Ready struct{}

// MessageCreated is dispatched for every new message observed in the live
// chat.
type MessageCreated struct {
	Message chat.Message
}

// StreamFetched is dispatched when stream information has been resolved.
type StreamFetched struct {
	Stream chat.Stream
}

// ChatPolled is dispatched on every successful poll with the full decoded
// page payload, so observers can inspect raw responses without the typed
// message layer.
type ChatPolled struct {
	Data map[string]any
}

// MessageSent is dispatched after the bot successfully sends a message.
type MessageSent struct {
	Message chat.Message
}

// Authorised is dispatched whenever a token is acquired or refreshed.
type Authorised struct {
	Secrets *oauth.Secrets
	Tokens  oauth.Token
}

func (Ready) isEvent()          {}
func (MessageCreated) isEvent() {}
func (StreamFetched) isEvent()  {}
func (ChatPolled) isEvent()     {}
func (MessageSent) isEvent()    {}
func (Authorised) isEvent()     {}

// Name returns the bare type name of an event, for logging.
func Name(ev Event) string {
	s := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
