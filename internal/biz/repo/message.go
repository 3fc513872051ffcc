package repo

import (
	"context"

	"github.com/devricklin/chatdigest/internal/biz/domain"
)

// ChatRepo is the outbound side of a messaging platform
type ChatRepo interface {
	// Send delivers a message to a destination chat
	Send(ctx context.Context, msg *domain.OutboundMessage) error
}

// RoomRepo fetches room snapshots for poll-diff capture
type RoomRepo interface {
	// FetchSnapshot returns the messages currently visible in the room
	FetchSnapshot(ctx context.Context, room domain.Room) ([]domain.SnapshotMessage, error)
}
