package conf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/usecase"
)

// Platforms
const (
	PlatformTelegram   = "telegram"
	PlatformFeishu     = "feishu"
	PlatformRocketChat = "rocketchat"
)

// Config represents application configuration
type Config struct {
	Timezone   string           `yaml:"timezone"`
	EpochDate  string           `yaml:"epoch_date"` // YYYY-MM-DD, day zero of the quiet-day counter
	Push       PushConfig       `yaml:"push"`
	Poll       PollConfig       `yaml:"poll"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Export     ExportConfig     `yaml:"export"`
	Digest     DigestConfig     `yaml:"digest"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Feishu     FeishuConfig     `yaml:"feishu"`
	RocketChat RocketChatConfig `yaml:"rocketchat"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Store      StoreConfig      `yaml:"store"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`

	// Prompts are loaded separately from prompts.yaml
	Prompts *PromptsConfig `yaml:"-"`

	location *time.Location
	epoch    time.Time
}

// PushConfig contains push capture settings
type PushConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Platform         string   `yaml:"platform"` // telegram or feishu
	TargetChatID     string   `yaml:"target_chat_id"`
	IgnoredThreadIDs []string `yaml:"ignored_thread_ids"`
	CommandPrefix    string   `yaml:"command_prefix"`
	MaxTextLength    int      `yaml:"max_text_length"`
}

// PollConfig contains poll-diff capture settings
type PollConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Source          string        `yaml:"source"` // rocketchat or feishu
	Interval        time.Duration `yaml:"interval"`
	GroupIDs        []string      `yaml:"group_ids"`
	ChannelIDs      []string      `yaml:"channel_ids"`
	ChatIDs         []string      `yaml:"chat_ids"`
	AllowedUsers    []string      `yaml:"allowed_users"`
	ForwardPlatform string        `yaml:"forward_platform"`
	ForwardChatID   string        `yaml:"forward_chat_id"`
	ForwardThreadID string        `yaml:"forward_thread_id"`
	ParseMode       string        `yaml:"parse_mode"`
	Parallelism     int           `yaml:"parallelism"`
}

// ScheduleConfig contains the daily anchors
type ScheduleConfig struct {
	ExportTime      string        `yaml:"export_time"`  // HH:MM
	PublishTime     string        `yaml:"publish_time"` // HH:MM
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
	ActionTimeout   time.Duration `yaml:"action_timeout"`
}

// ExportConfig contains export settings
type ExportConfig struct {
	Dir          string `yaml:"dir"`
	MaxChunkSize int    `yaml:"max_chunk_size"`
	Consolidated bool   `yaml:"consolidated"`
	IncludeIDs   bool   `yaml:"include_ids"`
}

// DigestConfig contains digest publishing settings
type DigestConfig struct {
	MaxSize         int    `yaml:"max_size"`
	Platform        string `yaml:"platform"`
	PublishChatID   string `yaml:"publish_chat_id"`
	PublishThreadID string `yaml:"publish_thread_id"`
	ParseMode       string `yaml:"parse_mode"` // markdownv2 or plain
}

// TelegramConfig contains Bot API settings
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	BaseURL     string        `yaml:"base_url"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// FeishuConfig contains Feishu app settings
type FeishuConfig struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	PageSize  int    `yaml:"page_size"`
}

// RocketChatConfig contains Rocket.Chat REST settings
type RocketChatConfig struct {
	URL       string        `yaml:"url"`
	UserID    string        `yaml:"user_id"`
	AuthToken string        `yaml:"auth_token"`
	Count     int           `yaml:"count"`
	Timeout   time.Duration `yaml:"timeout"`
}

// OpenAIConfig contains summarizer settings
type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StoreConfig contains event store settings
type StoreConfig struct {
	Path string `yaml:"path"`
}

// APIConfig contains status API settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns the configuration used for every key the file leaves out
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".chatdigest")

	return &Config{
		Timezone:  "UTC",
		EpochDate: "2024-01-01",
		Push: PushConfig{
			Platform:      PlatformTelegram,
			CommandPrefix: "/",
		},
		Poll: PollConfig{
			Source:          PlatformRocketChat,
			Interval:        time.Minute,
			ForwardPlatform: PlatformTelegram,
			ParseMode:       string(domain.FormatMarkdownV2),
			Parallelism:     4,
		},
		Schedule: ScheduleConfig{
			ExportTime:      "21:00",
			PublishTime:     "21:05",
			MaxPollInterval: time.Minute,
			ActionTimeout:   10 * time.Minute,
		},
		Export: ExportConfig{
			Dir:          filepath.Join(base, "messages"),
			MaxChunkSize: 100_000,
			IncludeIDs:   true,
		},
		Digest: DigestConfig{
			MaxSize:   4000,
			Platform:  PlatformTelegram,
			ParseMode: string(domain.FormatMarkdownV2),
		},
		Telegram: TelegramConfig{
			PollTimeout: 30 * time.Second,
		},
		Feishu: FeishuConfig{
			PageSize: 50,
		},
		RocketChat: RocketChatConfig{
			Timeout: 15 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join(base, "events.db"),
		},
		API: APIConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads .env (when present), the YAML file at path, then secret overrides
// from the environment, and validates the result. Unknown YAML keys are an error.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return &ConfigError{Field: "config", Message: err.Error()}
	}
	return nil
}

// applyEnv overrides secrets from the environment
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	override(&c.Feishu.AppID, "FEISHU_APP_ID")
	override(&c.Feishu.AppSecret, "FEISHU_APP_SECRET")
	override(&c.RocketChat.AuthToken, "ROCKET_USER_TOKEN")
	override(&c.RocketChat.UserID, "ROCKET_USER_ID")
	override(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&c.Store.Path, "CHATDIGEST_DB_PATH")

	c.Store.Path = expandHome(c.Store.Path)
	c.Export.Dir = expandHome(c.Export.Dir)
}

// expandHome replaces a leading ~/ with the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate validates the configuration
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return &ConfigError{Field: "timezone", Message: err.Error()}
	}
	c.location = loc

	epoch, err := time.ParseInLocation(domain.DateLayout, c.EpochDate, loc)
	if err != nil {
		return &ConfigError{Field: "epoch_date", Message: "must be YYYY-MM-DD"}
	}
	c.epoch = epoch

	if _, err := domain.ParseTimeOfDay(c.Schedule.ExportTime); err != nil {
		return &ConfigError{Field: "schedule.export_time", Message: err.Error()}
	}
	if _, err := domain.ParseTimeOfDay(c.Schedule.PublishTime); err != nil {
		return &ConfigError{Field: "schedule.publish_time", Message: err.Error()}
	}
	if c.Schedule.MaxPollInterval < time.Second {
		return &ConfigError{Field: "schedule.max_poll_interval", Message: "must be at least 1s"}
	}

	if c.Store.Path == "" {
		return &ConfigError{Field: "store.path", Message: "required"}
	}
	if c.Export.Dir == "" {
		return &ConfigError{Field: "export.dir", Message: "required"}
	}
	if c.Export.MaxChunkSize < 0 {
		return &ConfigError{Field: "export.max_chunk_size", Message: "must not be negative"}
	}

	if err := validMode("digest.parse_mode", c.Digest.ParseMode); err != nil {
		return err
	}
	if c.Digest.PublishChatID != "" {
		if err := c.validDestination("digest.platform", c.Digest.Platform); err != nil {
			return err
		}
		if err := plainForFeishu("digest.parse_mode", c.Digest.ParseMode, c.Digest.Platform); err != nil {
			return err
		}
	}

	if c.Push.Enabled {
		if c.Push.TargetChatID == "" {
			return &ConfigError{Field: "push.target_chat_id", Message: "required when push is enabled"}
		}
		if err := c.validDestination("push.platform", c.Push.Platform); err != nil {
			return err
		}
	}

	if c.Poll.Enabled {
		if err := c.validatePoll(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validatePoll() error {
	switch c.Poll.Source {
	case PlatformRocketChat:
		if c.RocketChat.URL == "" || c.RocketChat.UserID == "" || c.RocketChat.AuthToken == "" {
			return &ConfigError{Field: "rocketchat.url/ROCKET_USER_ID/ROCKET_USER_TOKEN", Message: "required for rocketchat polling"}
		}
		if len(c.Poll.GroupIDs)+len(c.Poll.ChannelIDs) == 0 {
			return &ConfigError{Field: "poll.group_ids/channel_ids", Message: "at least one room required"}
		}
	case PlatformFeishu:
		if err := c.requireFeishu(); err != nil {
			return err
		}
		if len(c.Poll.ChatIDs) == 0 {
			return &ConfigError{Field: "poll.chat_ids", Message: "at least one chat required"}
		}
	default:
		return &ConfigError{Field: "poll.source", Message: "must be rocketchat or feishu"}
	}

	if c.Poll.Interval <= 0 {
		return &ConfigError{Field: "poll.interval", Message: "must be positive"}
	}
	if c.Poll.ForwardChatID == "" {
		return &ConfigError{Field: "poll.forward_chat_id", Message: "required when polling is enabled"}
	}
	if err := validMode("poll.parse_mode", c.Poll.ParseMode); err != nil {
		return err
	}
	if err := c.validDestination("poll.forward_platform", c.Poll.ForwardPlatform); err != nil {
		return err
	}
	return plainForFeishu("poll.parse_mode", c.Poll.ParseMode, c.Poll.ForwardPlatform)
}

// validDestination checks that platform is telegram or feishu and has credentials
func (c *Config) validDestination(field, platform string) error {
	switch platform {
	case PlatformTelegram:
		if c.Telegram.Token == "" {
			return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Message: "required for " + field}
		}
		return nil
	case PlatformFeishu:
		return c.requireFeishu()
	default:
		return &ConfigError{Field: field, Message: "must be telegram or feishu"}
	}
}

func (c *Config) requireFeishu() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return nil
}

func validMode(field, mode string) error {
	switch domain.FormatMode(strings.ToLower(mode)) {
	case domain.FormatMarkdownV2, domain.FormatPlain:
		return nil
	}
	return &ConfigError{Field: field, Message: "must be markdownv2 or plain"}
}

// plainForFeishu rejects MarkdownV2 escaping for Feishu, which renders text as is
func plainForFeishu(field, mode, platform string) error {
	if platform == PlatformFeishu && domain.FormatMode(strings.ToLower(mode)) != domain.FormatPlain {
		return &ConfigError{Field: field, Message: "must be plain for a feishu destination"}
	}
	return nil
}

// ValidateSummarizer checks the settings only digest generation needs
func (c *Config) ValidateSummarizer() error {
	if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required for digest generation"}
	}
	return nil
}

// Location returns the validated schedule time zone
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Epoch returns day zero of the quiet-day counter
func (c *Config) Epoch() time.Time {
	return c.epoch
}

// Rooms returns the polled rooms for the configured source
func (c *Config) Rooms() []domain.Room {
	var rooms []domain.Room
	for _, id := range c.Poll.GroupIDs {
		rooms = append(rooms, domain.Room{ID: id, Kind: domain.RoomKindGroup})
	}
	for _, id := range c.Poll.ChannelIDs {
		rooms = append(rooms, domain.Room{ID: id, Kind: domain.RoomKindChannel})
	}
	for _, id := range c.Poll.ChatIDs {
		rooms = append(rooms, domain.Room{ID: id, Kind: domain.RoomKindChat})
	}
	return rooms
}

// ToCaptureConfig converts to push capture configuration
func (c *Config) ToCaptureConfig() usecase.CaptureConfig {
	return usecase.CaptureConfig{
		TargetChatID:     c.Push.TargetChatID,
		IgnoredThreadIDs: c.Push.IgnoredThreadIDs,
		CommandPrefix:    c.Push.CommandPrefix,
		MaxTextLength:    c.Push.MaxTextLength,
	}
}

// ToPollDiffConfig converts to poll-diff configuration
func (c *Config) ToPollDiffConfig() usecase.PollDiffConfig {
	return usecase.PollDiffConfig{
		Rooms:           c.Rooms(),
		AllowedUsers:    c.Poll.AllowedUsers,
		ForwardChatID:   c.Poll.ForwardChatID,
		ForwardThreadID: c.Poll.ForwardThreadID,
		Mode:            domain.FormatMode(strings.ToLower(c.Poll.ParseMode)),
		Parallelism:     c.Poll.Parallelism,
	}
}

// ToExportConfig converts to export configuration
func (c *Config) ToExportConfig() usecase.ExportConfig {
	return usecase.ExportConfig{
		ChatID:            c.Push.TargetChatID,
		ExcludedThreadIDs: c.Push.IgnoredThreadIDs,
		MaxChunkSize:      c.Export.MaxChunkSize,
		Consolidated:      c.Export.Consolidated,
		IncludeIDs:        c.Export.IncludeIDs,
		Location:          c.Location(),
	}
}

// ToDigestConfig converts to digest configuration
func (c *Config) ToDigestConfig() usecase.DigestConfig {
	prompts := c.prompts()
	return usecase.DigestConfig{
		Preamble:      prompts.Digest.Preamble,
		QuietTemplate: prompts.Digest.QuietDayTemplate,
		Epoch:         c.Epoch(),
		Location:      c.Location(),
	}
}

// ToPublishConfig converts to publish configuration
func (c *Config) ToPublishConfig() usecase.PublishConfig {
	return usecase.PublishConfig{
		ChatID:   c.Digest.PublishChatID,
		ThreadID: c.Digest.PublishThreadID,
		MaxSize:  c.Digest.MaxSize,
		Header:   c.prompts().Digest.PublishHeader,
		Mode:     domain.FormatMode(strings.ToLower(c.Digest.ParseMode)),
		Location: c.Location(),
	}
}

func (c *Config) prompts() *PromptsConfig {
	if c.Prompts == nil {
		return DefaultPromptsConfig()
	}
	return c.Prompts
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
