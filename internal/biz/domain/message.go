package domain

import (
	"strings"
	"time"
)

// ChatKind is the kind of chat an inbound event was posted in
type ChatKind string

const (
	ChatKindPrivate    ChatKind = "private"
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
)

// IsMultiParty reports whether the chat is a group room rather than a DM or broadcast channel
func (k ChatKind) IsMultiParty() bool {
	return k == ChatKindGroup || k == ChatKindSupergroup
}

// ForwardOrigin describes where a forwarded message came from
type ForwardOrigin string

const (
	ForwardOriginNone       ForwardOrigin = ""
	ForwardOriginUser       ForwardOrigin = "user"
	ForwardOriginHiddenUser ForwardOrigin = "hidden_user"
	ForwardOriginChat       ForwardOrigin = "chat"
	ForwardOriginChannel    ForwardOrigin = "channel"
)

// UnknownAuthor is used when an event carries neither a handle nor a display name
const UnknownAuthor = "Unknown"

// InboundEvent is a message pushed to us by a messaging platform
type InboundEvent struct {
	MessageID     string
	ChatID        string
	ChatKind      ChatKind
	Text          string
	Caption       string
	AuthorHandle  string
	AuthorName    string
	Timestamp     time.Time
	ThreadID      *string
	ForwardOrigin ForwardOrigin
}

// ResolvedText returns the primary text, falling back to the attachment caption
func (e *InboundEvent) ResolvedText() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Caption
}

// ResolvedAuthor returns handle, else display name, else UnknownAuthor
func (e *InboundEvent) ResolvedAuthor() string {
	if e.AuthorHandle != "" {
		return e.AuthorHandle
	}
	if e.AuthorName != "" {
		return e.AuthorName
	}
	return UnknownAuthor
}

// IsBroadcastRepost reports whether the event is a forward out of a broadcast channel
func (e *InboundEvent) IsBroadcastRepost() bool {
	return e.ForwardOrigin == ForwardOriginChannel
}

// CapturedMessage is a persisted chat message. It is never mutated once stored.
type CapturedMessage struct {
	ID        string
	ChatID    string
	ThreadID  *string // nil when the message is not in a topic/thread
	Author    string
	Text      string
	Timestamp time.Time
}

// InThread reports whether the message belongs to one of the given thread ids.
// Messages without a thread id are never in any set.
func (m *CapturedMessage) InThread(threadIDs map[string]struct{}) bool {
	if m.ThreadID == nil || len(threadIDs) == 0 {
		return false
	}
	_, ok := threadIDs[*m.ThreadID]
	return ok
}

// Line renders the message as a single export line
func (m *CapturedMessage) Line(includeID bool) string {
	// keep one message per line so chunk boundaries never split a message
	text := strings.ReplaceAll(m.Text, "\n", " ")
	if includeID {
		return m.ID + " | " + m.Author + ": " + text
	}
	return m.Author + ": " + text
}

// NewCapturedMessage builds a CapturedMessage from an accepted inbound event
func NewCapturedMessage(e *InboundEvent) *CapturedMessage {
	return &CapturedMessage{
		ID:        e.MessageID,
		ChatID:    e.ChatID,
		ThreadID:  e.ThreadID,
		Author:    e.ResolvedAuthor(),
		Text:      e.ResolvedText(),
		Timestamp: e.Timestamp,
	}
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
