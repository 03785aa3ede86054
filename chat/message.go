package chat

import (
	"fmt"
	"time"
)

// MessageType is the closed set of live chat event kinds the messages
// endpoint can return.
type MessageType string

const (
	ChatEnded              MessageType = "chatEndedEvent"
	MessageDeleted         MessageType = "messageDeletedEvent"
	NewSponsor             MessageType = "newSponsorEvent"
	SponsorOnlyModeEnded   MessageType = "sponsorOnlyModeEndedEvent"
	SponsorOnlyModeStarted MessageType = "sponsorOnlyModeStartedEvent"
	MemberMilestoneChat    MessageType = "memberMilestoneChatEvent"
	SuperChat              MessageType = "superChatEvent"
	SuperSticker           MessageType = "superStickerEvent"
	TextMessage            MessageType = "textMessageEvent"
	Tombstone              MessageType = "tombstone"
	UserBanned             MessageType = "userBannedEvent"
)

var messageTypes = map[MessageType]struct{}{
	ChatEnded:              {},
	MessageDeleted:         {},
	NewSponsor:             {},
	SponsorOnlyModeEnded:   {},
	SponsorOnlyModeStarted: {},
	MemberMilestoneChat:    {},
	SuperChat:              {},
	SuperSticker:           {},
	TextMessage:            {},
	Tombstone:              {},
	UserBanned:             {},
}

// ParseMessageType maps the wire string onto the enumeration. Unknown kinds
// are an error so consumers can rely on exhaustive switches.
func ParseMessageType(s string) (MessageType, error) {
	mt := MessageType(s)
	if _, ok := messageTypes[mt]; !ok {
		return "", fmt.Errorf("unknown message type %q", s)
	}
	return mt, nil
}

// Message is one chat event as observed in a poll page or echoed back from a
// send. Equality is structural across all fields.
type Message struct {
	ID          string
	Type        MessageType
	Stream      Stream
	Channel     Channel
	PublishedAt time.Time
	Content     string
}
