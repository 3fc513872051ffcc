package data

import (
	"context"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/infra/telegram"
)

// telegramRepo sends outbound messages through the Bot API
type telegramRepo struct {
	client *telegram.Client
}

// NewTelegramRepo creates a Telegram chat repository
func NewTelegramRepo(client *telegram.Client) repo.ChatRepo {
	return &telegramRepo{client: client}
}

func (r *telegramRepo) Send(ctx context.Context, msg *domain.OutboundMessage) error {
	parseMode := ""
	if msg.Mode == domain.FormatMarkdownV2 {
		parseMode = "MarkdownV2"
	}
	return r.client.SendMessage(ctx, msg.ChatID, msg.ThreadID, msg.Text, parseMode)
}
