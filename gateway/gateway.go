// Package gateway is the boundary to the chat platform. The report workflow
// only talks to the Gateway interface; Discord implements it over discordgo.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownChannel is returned when a channel does not exist or is not visible to the bot
var ErrUnknownChannel = errors.New("unknown channel")

// MessageRef locates a message
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return r.ChannelID == "" && r.MessageID == ""
}

// Profile is the subset of a platform user the workflow displays
type Profile struct {
	ID            string
	Username      string
	Discriminator string
	AvatarURL     string
}

// Tag renders name#discriminator, or just the name for accounts without one.
func (p Profile) Tag() string {
	if p.Discriminator == "" || p.Discriminator == "0" {
		return p.Username
	}
	return p.Username + "#" + p.Discriminator
}

// Field is a name/value row of a notice
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Notice is a rich message (an embed on Discord)
type Notice struct {
	Title      string
	Color      int
	AuthorName string
	AuthorIcon string
	Fields     []Field
	Footer     string
	Timestamp  time.Time
}

// Message is a fetched message
type Message struct {
	Ref      MessageRef
	AuthorID string
	Content  string
	Notices  []Notice
}

// MessageCreate is an inbound message event
type MessageCreate struct {
	Ref         MessageRef
	GuildID     string
	AuthorID    string
	AuthorIsBot bool
	Content     string
}

// ReactionAdd is an inbound reaction event
type ReactionAdd struct {
	Ref     MessageRef
	GuildID string
	UserID  string
	Emoji   string
}

// Gateway is the set of platform primitives the report workflow consumes
type Gateway interface {
	// SelfID is the bot's own user id.
	SelfID() string
	SendMessage(ctx context.Context, channelID, content string) (MessageRef, error)
	SendNotice(ctx context.Context, channelID string, n Notice) (MessageRef, error)
	AddReaction(ctx context.Context, ref MessageRef, emoji string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	SendDirectMessage(ctx context.Context, userID, content string) error
	FetchUser(ctx context.Context, userID string) (Profile, error)
	FetchMessage(ctx context.Context, ref MessageRef) (Message, error)
	// ChannelExists returns false, nil for channels that are gone or hidden.
	ChannelExists(ctx context.Context, channelID string) (bool, error)
}

// MessageHandler receives inbound messages
type MessageHandler func(ctx context.Context, ev MessageCreate)

// ReactionHandler receives inbound reactions
type ReactionHandler func(ctx context.Context, ev ReactionAdd)
