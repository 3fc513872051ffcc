package repo

import (
	"context"
	"time"

	"github.com/devricklin/chatdigest/internal/biz/domain"
)

// EventRepo is the durable, idempotent store of captured messages
type EventRepo interface {
	// Put inserts the message unless its id already exists. Duplicates are not an error.
	Put(ctx context.Context, msg *domain.CapturedMessage) error

	// Query returns messages of chatID with from <= timestamp < to, oldest first,
	// ties in insertion order. Messages whose thread id is in excludedThreadIDs are
	// dropped; messages without a thread id are always kept.
	Query(ctx context.Context, chatID string, from, to time.Time, excludedThreadIDs []string) ([]*domain.CapturedMessage, error)

	// Count returns the number of stored messages of chatID
	Count(ctx context.Context, chatID string) (int, error)

	Close() error
}
