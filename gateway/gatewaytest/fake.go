// Package gatewaytest provides an in-memory gateway.Gateway that records
// every outbound call.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"report-case-service/gateway"
)

// Sent is an outbound channel message or direct message
type Sent struct {
	To      string
	Content string
}

// Fake is a concurrency safe gateway.Gateway. Like Discord it refuses
// content and notice fields past the length limits.
type Fake struct {
	Self string

	mu       sync.Mutex
	seq      int
	channels map[string]bool
	users    map[string]gateway.Profile
	messages map[gateway.MessageRef]gateway.Message

	lastNotice gateway.MessageRef

	Messages  []Sent
	Notices   []Sent
	DMs       []Sent
	Deleted   []gateway.MessageRef
	Reactions []gateway.MessageRef

	// Failure injection.
	NoticeErr    error
	ChannelErr   error
	DMErr        map[string]error
	SendErr      error
	FetchUserErr error
}

func New(selfID string) *Fake {
	return &Fake{
		Self:     selfID,
		channels: map[string]bool{},
		users:    map[string]gateway.Profile{},
		messages: map[gateway.MessageRef]gateway.Message{},
		DMErr:    map[string]error{},
	}
}

// AddChannel makes channelID visible to ChannelExists
func (f *Fake) AddChannel(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[channelID] = true
}

// AddUser registers a profile for FetchUser
func (f *Fake) AddUser(p gateway.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[p.ID] = p
}

// PutMessage stores a message for FetchMessage
func (f *Fake) PutMessage(m gateway.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.Ref] = m
}

func (f *Fake) SelfID() string { return f.Self }

func (f *Fake) nextRef(channelID string) gateway.MessageRef {
	f.seq++
	return gateway.MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", f.seq)}
}

func (f *Fake) SendMessage(_ context.Context, channelID, content string) (gateway.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return gateway.MessageRef{}, f.SendErr
	}
	if err := gateway.CheckContent(content); err != nil {
		return gateway.MessageRef{}, err
	}
	f.Messages = append(f.Messages, Sent{To: channelID, Content: content})
	return f.nextRef(channelID), nil
}

func (f *Fake) SendNotice(_ context.Context, channelID string, n gateway.Notice) (gateway.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NoticeErr != nil {
		return gateway.MessageRef{}, f.NoticeErr
	}
	if err := n.CheckLimits(); err != nil {
		return gateway.MessageRef{}, err
	}
	ref := f.nextRef(channelID)
	f.Notices = append(f.Notices, Sent{To: channelID, Content: n.Footer})
	f.lastNotice = ref
	f.messages[ref] = gateway.Message{Ref: ref, AuthorID: f.Self, Notices: []gateway.Notice{n}}
	return ref, nil
}

func (f *Fake) AddReaction(_ context.Context, ref gateway.MessageRef, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reactions = append(f.Reactions, ref)
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, ref gateway.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, ref)
	return nil
}

func (f *Fake) SendDirectMessage(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DMErr[userID]; err != nil {
		return err
	}
	if err := gateway.CheckContent(content); err != nil {
		return err
	}
	f.DMs = append(f.DMs, Sent{To: userID, Content: content})
	return nil
}

func (f *Fake) FetchUser(_ context.Context, userID string) (gateway.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchUserErr != nil {
		return gateway.Profile{}, f.FetchUserErr
	}
	if p, ok := f.users[userID]; ok {
		return p, nil
	}
	return gateway.Profile{ID: userID, Username: "user" + userID}, nil
}

func (f *Fake) FetchMessage(_ context.Context, ref gateway.MessageRef) (gateway.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[ref]
	if !ok {
		return gateway.Message{}, fmt.Errorf("unknown message %s", ref.MessageID)
	}
	return m, nil
}

func (f *Fake) ChannelExists(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChannelErr != nil {
		return false, f.ChannelErr
	}
	return f.channels[channelID], nil
}

// DMsTo returns the direct messages sent to userID
func (f *Fake) DMsTo(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, dm := range f.DMs {
		if dm.To == userID {
			out = append(out, dm.Content)
		}
	}
	return out
}

// MessagesTo returns the channel messages sent to channelID
func (f *Fake) MessagesTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.Messages {
		if m.To == channelID {
			out = append(out, m.Content)
		}
	}
	return out
}

// HasMessageContaining reports whether any channel message to channelID contains substr
func (f *Fake) HasMessageContaining(channelID, substr string) bool {
	for _, m := range f.MessagesTo(channelID) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// NoticeCount returns how many notices were published
func (f *Fake) NoticeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Notices)
}

// LastNoticeRef returns the ref of the most recent notice
func (f *Fake) LastNoticeRef() gateway.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastNotice
}

// DeletedRefs returns deleted message refs
func (f *Fake) DeletedRefs() []gateway.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.MessageRef(nil), f.Deleted...)
}
