package domain

import (
	"sort"
	"time"
)

// RoomKind is the kind of a polled room
type RoomKind string

const (
	RoomKindGroup   RoomKind = "group"   // private Rocket.Chat group
	RoomKindChannel RoomKind = "channel" // public Rocket.Chat channel
	RoomKindChat    RoomKind = "chat"    // Feishu chat
)

// Room identifies a polled room
type Room struct {
	ID   string
	Kind RoomKind
}

// Key returns a stable key unique across room kinds
func (r Room) Key() string {
	return string(r.Kind) + "_" + r.ID
}

// SnapshotMessage is one message returned by a room snapshot fetch
type SnapshotMessage struct {
	ID           string
	Text         string
	Author       string
	SentAt       time.Time
	ThreadMarker string // id of the thread root when the message is a reply
}

// IsThreadReply reports whether the message is a reply inside a thread
func (m *SnapshotMessage) IsThreadReply() bool {
	return m.ThreadMarker != ""
}

// RoomSnapshot tracks the message ids seen in the most recent snapshot of a room
type RoomSnapshot struct {
	Room      Room
	Seen      map[string]struct{}
	Baselined bool
}

// NewRoomSnapshot creates an empty, not yet baselined snapshot state
func NewRoomSnapshot(room Room) *RoomSnapshot {
	return &RoomSnapshot{
		Room: room,
		Seen: make(map[string]struct{}),
	}
}

// Replace swaps the seen set for ids. Previous ids that are not in ids are dropped.
func (s *RoomSnapshot) Replace(ids map[string]struct{}) {
	s.Seen = ids
	s.Baselined = true
}

// Novel returns the messages whose ids are not in the seen set, keeping snapshot order
func (s *RoomSnapshot) Novel(messages []SnapshotMessage) []SnapshotMessage {
	var novel []SnapshotMessage
	for _, m := range messages {
		if _, ok := s.Seen[m.ID]; !ok {
			novel = append(novel, m)
		}
	}
	return novel
}

// SnapshotIDs returns the set of ids contained in messages
func SnapshotIDs(messages []SnapshotMessage) map[string]struct{} {
	ids := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if m.ID == "" {
			continue
		}
		ids[m.ID] = struct{}{}
	}
	return ids
}

// SortBySentAt sorts messages by send time, oldest first. Equal times keep their order.
func SortBySentAt(messages []SnapshotMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
}
