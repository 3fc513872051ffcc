package data

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/chatdigest/internal/conf"
)

func TestNewRepositories_OnlyConfiguredPlatforms(t *testing.T) {
	dir := t.TempDir()
	cfg := conf.Default()
	cfg.Store.Path = filepath.Join(dir, "events.db")
	cfg.Export.Dir = filepath.Join(dir, "messages")
	cfg.Telegram.Token = "123:abc"

	repos, err := NewRepositories(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer repos.Close()

	assert.NotNil(t, repos.Event)
	assert.NotNil(t, repos.Artifact)
	assert.Nil(t, repos.Summary)

	chat, err := repos.ChatRepo(conf.PlatformTelegram)
	require.NoError(t, err)
	assert.NotNil(t, chat)

	_, err = repos.ChatRepo(conf.PlatformFeishu)
	assert.Error(t, err)
	_, err = repos.ChatRepo(conf.PlatformRocketChat)
	assert.Error(t, err)

	_, err = repos.RoomRepo(conf.PlatformRocketChat)
	assert.Error(t, err)
	_, err = repos.RoomRepo(conf.PlatformTelegram)
	assert.Error(t, err)
}

func TestNewRepositories_Summarizer(t *testing.T) {
	dir := t.TempDir()
	cfg := conf.Default()
	cfg.Store.Path = filepath.Join(dir, "events.db")
	cfg.Export.Dir = filepath.Join(dir, "messages")
	cfg.OpenAI.APIKey = "sk-test"
	cfg.RocketChat.URL = "https://chat.example.com"

	repos, err := NewRepositories(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer repos.Close()

	assert.NotNil(t, repos.Summary)
	rooms, err := repos.RoomRepo(conf.PlatformRocketChat)
	require.NoError(t, err)
	assert.NotNil(t, rooms)
}
