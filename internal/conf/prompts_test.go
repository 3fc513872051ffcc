package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptsConfig_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("digest:\n  publish_header: \"Сегодня {{date}} в теме обсуждалось:\"\n"), 0644))

	cfg, err := LoadPromptsConfig(path)
	require.NoError(t, err)

	defaults := DefaultPromptsConfig()
	assert.Equal(t, "Сегодня {{date}} в теме обсуждалось:", cfg.Digest.PublishHeader)
	assert.Equal(t, defaults.Digest.Preamble, cfg.Digest.Preamble)
	assert.Equal(t, defaults.Digest.QuietDayTemplate, cfg.Digest.QuietDayTemplate)
	assert.Equal(t, defaults.Summary.SystemPrompt, cfg.Summary.SystemPrompt)
}

func TestLoadPromptsConfig_ExplicitPathMustExist(t *testing.T) {
	_, err := LoadPromptsConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadPromptsConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("digest: [unclosed"), 0644))

	_, err := LoadPromptsConfig(path)
	assert.Error(t, err)
}
