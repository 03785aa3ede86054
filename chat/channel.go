// Package chat holds the immutable domain values the bot passes around:
// channels (chat participants), streams (live sessions), and messages.
// Values are plain comparable structs so equality is structural.
package chat

// Channel identifies a chat participant, built from the author details of a
// liveChatMessage resource.
type Channel struct {
	ID          string
	URL         string
	Name        string
	AvatarURL   string
	IsVerified  bool
	IsOwner     bool
	IsSponsor   bool
	IsModerator bool
}
