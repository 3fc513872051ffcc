package data

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/infra/feishu"
)

// feishuRepo sends to and polls Feishu chats
type feishuRepo struct {
	client   *feishu.Client
	pageSize int
	logger   zerolog.Logger

	mu      sync.Mutex
	members map[string]map[string]string // chat id -> open_id -> name
}

// FeishuRepo is both the outbound chat and the polled room source for Feishu
type FeishuRepo interface {
	repo.ChatRepo
	repo.RoomRepo

	// AuthorName resolves a sender open_id to a display name, "" when unknown
	AuthorName(ctx context.Context, chatID, senderID string) string
}

// NewFeishuRepo creates a Feishu repository
func NewFeishuRepo(client *feishu.Client, pageSize int, logger zerolog.Logger) FeishuRepo {
	return &feishuRepo{
		client:   client,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "feishu_repo").Logger(),
		members:  make(map[string]map[string]string),
	}
}

// Send posts plain text; a thread id is the root message the text replies to
func (r *feishuRepo) Send(ctx context.Context, msg *domain.OutboundMessage) error {
	if msg.ThreadID != "" {
		return r.client.ReplyText(ctx, msg.ThreadID, msg.Text)
	}
	return r.client.SendText(ctx, msg.ChatID, msg.Text)
}

func (r *feishuRepo) FetchSnapshot(ctx context.Context, room domain.Room) ([]domain.SnapshotMessage, error) {
	if room.Kind != domain.RoomKindChat {
		return nil, errors.Errorf("room kind %q is not a Feishu chat", room.Kind)
	}

	msgs, err := r.client.ListMessages(ctx, room.ID, r.pageSize)
	if err != nil {
		return nil, err
	}

	names := r.memberNames(ctx, room.ID)

	out := make([]domain.SnapshotMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.IsFromApp() {
			continue
		}
		author := names[m.SenderID]
		if author == "" {
			author = m.SenderID
		}
		out = append(out, domain.SnapshotMessage{
			ID:           m.MsgID,
			Text:         m.Content,
			Author:       author,
			SentAt:       m.CreateTime,
			ThreadMarker: m.RootID,
		})
	}
	return out, nil
}

func (r *feishuRepo) AuthorName(ctx context.Context, chatID, senderID string) string {
	return r.memberNames(ctx, chatID)[senderID]
}

// memberNames resolves sender ids to names, cached per chat. A lookup failure
// leaves ids unresolved and is retried on the next poll.
func (r *feishuRepo) memberNames(ctx context.Context, chatID string) map[string]string {
	r.mu.Lock()
	cached, ok := r.members[chatID]
	r.mu.Unlock()
	if ok {
		return cached
	}

	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		r.logger.Warn().Err(err).Str("chat_id", chatID).Msg("member lookup failed")
		return nil
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.MemberID] = m.Name
	}

	r.mu.Lock()
	r.members[chatID] = names
	r.mu.Unlock()
	return names
}
