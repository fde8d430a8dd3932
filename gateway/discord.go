package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/bwmarrin/discordgo"

	"report-case-service/version"
)

// Discord implements Gateway over a discordgo session. Inbound events are
// dispatched by discordgo on their own goroutines.
type Discord struct {
	session *discordgo.Session

	onMessage  []MessageHandler
	onReaction []ReactionHandler
}

// NewDiscord creates an unopened session for a bot token
func NewDiscord(token string) (*Discord, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.UserAgent = version.UserAgent()
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
	return &Discord{session: s}, nil
}

// OnMessage registers a message handler. Must be called before Run.
func (d *Discord) OnMessage(h MessageHandler) {
	d.onMessage = append(d.onMessage, h)
}

// OnReaction registers a reaction handler. Must be called before Run.
func (d *Discord) OnReaction(h ReactionHandler) {
	d.onReaction = append(d.onReaction, h)
}

// Run opens the gateway connection and blocks until ctx is done
func (d *Discord) Run(ctx context.Context) error {
	d.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.WithField("user", r.User.Username).Info("Connected to Discord gateway")
	})
	d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		ev := MessageCreate{
			Ref:         MessageRef{ChannelID: m.ChannelID, MessageID: m.ID},
			GuildID:     m.GuildID,
			AuthorID:    m.Author.ID,
			AuthorIsBot: m.Author.Bot,
			Content:     m.Content,
		}
		for _, h := range d.onMessage {
			h(ctx, ev)
		}
	})
	d.session.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		ev := ReactionAdd{
			Ref:     MessageRef{ChannelID: r.ChannelID, MessageID: r.MessageID},
			GuildID: r.GuildID,
			UserID:  r.UserID,
			Emoji:   r.Emoji.Name,
		}
		for _, h := range d.onReaction {
			h(ctx, ev)
		}
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	<-ctx.Done()
	log.Info("Closing Discord gateway")
	return d.session.Close()
}

func (d *Discord) SelfID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (MessageRef, error) {
	if err := CheckContent(content); err != nil {
		return MessageRef{}, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	m, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return MessageRef{}, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (d *Discord) SendNotice(ctx context.Context, channelID string, n Notice) (MessageRef, error) {
	if err := n.CheckLimits(); err != nil {
		return MessageRef{}, fmt.Errorf("send notice to %s: %w", channelID, err)
	}
	m, err := d.session.ChannelMessageSendEmbed(channelID, toEmbed(n), discordgo.WithContext(ctx))
	if err != nil {
		return MessageRef{}, fmt.Errorf("send notice to %s: %w", channelID, err)
	}
	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (d *Discord) AddReaction(ctx context.Context, ref MessageRef, emoji string) error {
	if err := d.session.MessageReactionAdd(ref.ChannelID, ref.MessageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add reaction to %s: %w", ref.MessageID, err)
	}
	return nil
}

func (d *Discord) DeleteMessage(ctx context.Context, ref MessageRef) error {
	if err := d.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", ref.MessageID, err)
	}
	return nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, content string) error {
	if err := CheckContent(content); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	ch, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel with %s: %w", userID, err)
	}
	if _, err := d.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

func (d *Discord) FetchUser(ctx context.Context, userID string) (Profile, error) {
	u, err := d.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return Profile{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return Profile{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		AvatarURL:     u.AvatarURL(""),
	}, nil
}

func (d *Discord) FetchMessage(ctx context.Context, ref MessageRef) (Message, error) {
	m, err := d.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, fmt.Errorf("fetch message %s: %w", ref.MessageID, err)
	}
	msg := Message{Ref: ref, Content: m.Content}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	for _, e := range m.Embeds {
		msg.Notices = append(msg.Notices, fromEmbed(e))
	}
	return msg, nil
}

func (d *Discord) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	if d.session.State != nil {
		if _, err := d.session.State.Channel(channelID); err == nil {
			return true, nil
		}
	}
	_, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return false, nil
		}
	}
	return false, fmt.Errorf("look up channel %s: %w", channelID, err)
}

func toEmbed(n Notice) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: n.Title,
		Color: n.Color,
	}
	if !n.Timestamp.IsZero() {
		e.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}
	if n.AuthorName != "" {
		e.Author = &discordgo.MessageEmbedAuthor{Name: n.AuthorName, IconURL: n.AuthorIcon}
	}
	if n.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: n.Footer}
	}
	for _, f := range n.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return e
}

func fromEmbed(e *discordgo.MessageEmbed) Notice {
	n := Notice{Title: e.Title, Color: e.Color}
	if e.Author != nil {
		n.AuthorName = e.Author.Name
		n.AuthorIcon = e.Author.IconURL
	}
	if e.Footer != nil {
		n.Footer = e.Footer.Text
	}
	if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		n.Timestamp = t
	}
	for _, f := range e.Fields {
		n.Fields = append(n.Fields, Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return n
}
