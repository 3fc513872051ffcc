package conf

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	Digest  DigestPrompts  `yaml:"digest"`
	Summary SummaryPrompts `yaml:"summary"`
}

// DigestPrompts contains the texts that frame a digest
type DigestPrompts struct {
	Preamble         string `yaml:"preamble"`           // prepended to every chunk
	QuietDayTemplate string `yaml:"quiet_day_template"` // supports {{days}}
	PublishHeader    string `yaml:"publish_header"`     // supports {{date}}
}

// SummaryPrompts contains summarizer model prompts
type SummaryPrompts struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/chatdigest/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, errors.Errorf("prompts file %s not found", configPath)
		}
		log.Info().Msg("no prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	log.Info().Str("path", loadedPath).Msg("loading prompts")

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "parse prompts.yaml")
	}

	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Digest.Preamble == "" {
		c.Digest.Preamble = defaults.Digest.Preamble
	}
	if c.Digest.QuietDayTemplate == "" {
		c.Digest.QuietDayTemplate = defaults.Digest.QuietDayTemplate
	}
	if c.Digest.PublishHeader == "" {
		c.Digest.PublishHeader = defaults.Digest.PublishHeader
	}
	if c.Summary.SystemPrompt == "" {
		c.Summary.SystemPrompt = defaults.Summary.SystemPrompt
	}
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Digest: DigestPrompts{
			Preamble: `Below is one day of messages from a group chat, one message per line in the form "id | author: text".
Write a short digest of the topics that were discussed, as a bulleted list.
Use *single asterisks* for emphasis. Do not invent anything that is not in the log.`,
			QuietDayTemplate: "Day {{days}}: the chat was quiet today.",
			PublishHeader:    "Today {{date}} the chat discussed:",
		},
		Summary: SummaryPrompts{
			SystemPrompt: "You summarize chat logs for the people who missed them. Be brief and factual.",
		},
	}
}
