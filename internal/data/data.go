package data

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/conf"
	"github.com/devricklin/chatdigest/internal/infra/feishu"
	"github.com/devricklin/chatdigest/internal/infra/llm"
	"github.com/devricklin/chatdigest/internal/infra/rocketchat"
	"github.com/devricklin/chatdigest/internal/infra/telegram"
)

// Repositories contains all repositories. Platform clients and repos are nil
// when their credentials are not configured.
type Repositories struct {
	Event    repo.EventRepo
	Artifact repo.ArtifactRepo

	TelegramClient *telegram.Client
	FeishuClient   *feishu.Client

	Telegram   repo.ChatRepo
	Feishu     FeishuRepo
	RocketChat repo.RoomRepo
	Summary    repo.SummaryRepo
}

// NewRepositories opens the event store and creates every configured platform repository
func NewRepositories(cfg *conf.Config, logger zerolog.Logger) (*Repositories, error) {
	eventRepo, err := NewEventRepo(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}

	r := &Repositories{
		Event:    eventRepo,
		Artifact: NewArtifactRepo(cfg.Export.Dir),
	}

	if cfg.Telegram.Token != "" {
		r.TelegramClient = telegram.NewClient(telegram.Config{
			Token:       cfg.Telegram.Token,
			BaseURL:     cfg.Telegram.BaseURL,
			PollTimeout: cfg.Telegram.PollTimeout,
		}, logger)
		r.Telegram = NewTelegramRepo(r.TelegramClient)
	}

	if cfg.Feishu.AppID != "" && cfg.Feishu.AppSecret != "" {
		r.FeishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger)
		r.Feishu = NewFeishuRepo(r.FeishuClient, cfg.Feishu.PageSize, logger)
	}

	if cfg.RocketChat.URL != "" {
		r.RocketChat = NewRocketChatRepo(rocketchat.NewClient(rocketchat.Config{
			BaseURL:   cfg.RocketChat.URL,
			UserID:    cfg.RocketChat.UserID,
			AuthToken: cfg.RocketChat.AuthToken,
			Count:     cfg.RocketChat.Count,
			Timeout:   cfg.RocketChat.Timeout,
		}))
	}

	if cfg.ValidateSummarizer() == nil {
		systemPrompt := conf.DefaultPromptsConfig().Summary.SystemPrompt
		if cfg.Prompts != nil {
			systemPrompt = cfg.Prompts.Summary.SystemPrompt
		}
		r.Summary = NewSummaryRepo(llm.NewClient(llm.Config{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Model:        cfg.OpenAI.Model,
			SystemPrompt: systemPrompt,
			Temperature:  cfg.OpenAI.Temperature,
			MaxTokens:    cfg.OpenAI.MaxTokens,
			Timeout:      cfg.OpenAI.Timeout,
		}))
	}

	return r, nil
}

// ChatRepo returns the outbound repository of platform
func (r *Repositories) ChatRepo(platform string) (repo.ChatRepo, error) {
	switch platform {
	case conf.PlatformTelegram:
		if r.Telegram != nil {
			return r.Telegram, nil
		}
	case conf.PlatformFeishu:
		if r.Feishu != nil {
			return r.Feishu, nil
		}
	default:
		return nil, errors.Errorf("platform %q cannot send messages", platform)
	}
	return nil, errors.Errorf("%s credentials are not configured", platform)
}

// RoomRepo returns the snapshot source of platform
func (r *Repositories) RoomRepo(platform string) (repo.RoomRepo, error) {
	switch platform {
	case conf.PlatformRocketChat:
		if r.RocketChat != nil {
			return r.RocketChat, nil
		}
	case conf.PlatformFeishu:
		if r.Feishu != nil {
			return r.Feishu, nil
		}
	default:
		return nil, errors.Errorf("platform %q cannot be polled", platform)
	}
	return nil, errors.Errorf("%s credentials are not configured", platform)
}

// Close releases the event store
func (r *Repositories) Close() error {
	return r.Event.Close()
}
