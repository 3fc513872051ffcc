package data

import (
	"context"

	"github.com/pkg/errors"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/infra/rocketchat"
)

// rocketChatRepo fetches room snapshots from Rocket.Chat
type rocketChatRepo struct {
	client *rocketchat.Client
}

// NewRocketChatRepo creates a Rocket.Chat room repository
func NewRocketChatRepo(client *rocketchat.Client) repo.RoomRepo {
	return &rocketChatRepo{client: client}
}

func (r *rocketChatRepo) FetchSnapshot(ctx context.Context, room domain.Room) ([]domain.SnapshotMessage, error) {
	var roomType string
	switch room.Kind {
	case domain.RoomKindGroup:
		roomType = rocketchat.RoomTypeGroup
	case domain.RoomKindChannel:
		roomType = rocketchat.RoomTypeChannel
	default:
		return nil, errors.Errorf("room kind %q is not a Rocket.Chat room", room.Kind)
	}

	msgs, err := r.client.RoomMessages(ctx, roomType, room.ID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SnapshotMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.SnapshotMessage{
			ID:           m.ID,
			Text:         m.Text,
			Author:       m.Username,
			SentAt:       m.SentAt,
			ThreadMarker: m.ThreadID,
		})
	}
	return out, nil
}
