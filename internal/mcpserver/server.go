package mcpserver

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
)

const defaultMessageLimit = 200

// Config contains the chat the tools read from
type Config struct {
	ChatID            string
	ExcludedThreadIDs []string
	Location          *time.Location
}

// DigestMCPServer exposes stored messages, export chunks and digests as read-only MCP tools
type DigestMCPServer struct {
	server    *mcp.Server
	config    Config
	eventRepo repo.EventRepo
	artifacts repo.ArtifactRepo
	logger    zerolog.Logger
}

// NewServer creates the MCP server and registers its tools
func NewServer(config Config, eventRepo repo.EventRepo, artifacts repo.ArtifactRepo, logger zerolog.Logger) *DigestMCPServer {
	if config.Location == nil {
		config.Location = time.UTC
	}

	s := &DigestMCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chatdigest",
			Version: "v1.0.0",
		}, nil),
		config:    config,
		eventRepo: eventRepo,
		artifacts: artifacts,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

func (s *DigestMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_digest",
		Description: "Get the published digest of one day. Day is YYYY-MM-DD.",
	}, s.handleGetDigest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_messages",
		Description: "List the captured chat messages of one calendar day, oldest first.",
	}, s.handleListMessages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_export_chunks",
		Description: "List the export chunk files written for one day with their sizes.",
	}, s.handleListExportChunks)
}

// Run serves over stdio until the client disconnects or ctx is done
func (s *DigestMCPServer) Run(ctx context.Context) error {
	s.logger.Info().Msg("mcp server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *DigestMCPServer) GetServer() *mcp.Server {
	return s.server
}

// DayInput selects a calendar day
type DayInput struct {
	Day string `json:"day" jsonschema:"calendar day as YYYY-MM-DD"`
}

// GetDigestOutput is the output for get_digest
type GetDigestOutput struct {
	Day   string `json:"day"`
	Found bool   `json:"found"`
	Text  string `json:"text,omitempty"`
}

func (s *DigestMCPServer) handleGetDigest(ctx context.Context, req *mcp.CallToolRequest, input DayInput) (*mcp.CallToolResult, GetDigestOutput, error) {
	if _, err := s.parseDay(input.Day); err != nil {
		return nil, GetDigestOutput{}, err
	}

	text, ok, err := s.artifacts.ReadDigest(ctx, input.Day)
	if err != nil {
		return nil, GetDigestOutput{}, err
	}
	return nil, GetDigestOutput{Day: input.Day, Found: ok, Text: text}, nil
}

// ListMessagesInput is the input for list_messages
type ListMessagesInput struct {
	Day   string `json:"day" jsonschema:"calendar day as YYYY-MM-DD"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of messages to return (default 200)"`
}

// MessageItem is one captured message
type MessageItem struct {
	ID       string `json:"id"`
	Author   string `json:"author"`
	Text     string `json:"text"`
	ThreadID string `json:"thread_id,omitempty"`
	Time     string `json:"time"`
}

// ListMessagesOutput is the output for list_messages
type ListMessagesOutput struct {
	Day       string        `json:"day"`
	Total     int           `json:"total"`
	Truncated bool          `json:"truncated"`
	Messages  []MessageItem `json:"messages"`
}

func (s *DigestMCPServer) handleListMessages(ctx context.Context, req *mcp.CallToolRequest, input ListMessagesInput) (*mcp.CallToolResult, ListMessagesOutput, error) {
	from, err := s.parseDay(input.Day)
	if err != nil {
		return nil, ListMessagesOutput{}, err
	}

	msgs, err := s.eventRepo.Query(ctx, s.config.ChatID, from, from.AddDate(0, 0, 1), s.config.ExcludedThreadIDs)
	if err != nil {
		return nil, ListMessagesOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	out := ListMessagesOutput{
		Day:      input.Day,
		Total:    len(msgs),
		Messages: make([]MessageItem, 0, min(limit, len(msgs))),
	}
	for i, m := range msgs {
		if i >= limit {
			out.Truncated = true
			break
		}
		item := MessageItem{
			ID:     m.ID,
			Author: m.Author,
			Text:   m.Text,
			Time:   m.Timestamp.In(s.config.Location).Format(time.RFC3339),
		}
		if m.ThreadID != nil {
			item.ThreadID = *m.ThreadID
		}
		out.Messages = append(out.Messages, item)
	}
	return nil, out, nil
}

// ChunkItem is one export chunk file
type ChunkItem struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	Size  string `json:"size"`
}

// ListExportChunksOutput is the output for list_export_chunks
type ListExportChunksOutput struct {
	Day      string      `json:"day"`
	Exported bool        `json:"exported"`
	Chunks   []ChunkItem `json:"chunks"`
}

func (s *DigestMCPServer) handleListExportChunks(ctx context.Context, req *mcp.CallToolRequest, input DayInput) (*mcp.CallToolResult, ListExportChunksOutput, error) {
	if _, err := s.parseDay(input.Day); err != nil {
		return nil, ListExportChunksOutput{}, err
	}

	out := ListExportChunksOutput{Day: input.Day, Chunks: []ChunkItem{}}
	if !s.artifacts.DayExists(input.Day) {
		return nil, out, nil
	}
	out.Exported = true

	paths, err := s.artifacts.ListChunks(ctx, input.Day)
	if err != nil {
		return nil, ListExportChunksOutput{}, err
	}
	for _, p := range paths {
		text, err := s.artifacts.ReadChunk(ctx, p)
		if err != nil {
			return nil, ListExportChunksOutput{}, err
		}
		out.Chunks = append(out.Chunks, ChunkItem{
			Path:  p,
			Bytes: len(text),
			Size:  humanize.Bytes(uint64(len(text))),
		})
	}
	return nil, out, nil
}

func (s *DigestMCPServer) parseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DateLayout, day, s.config.Location)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid day %q, want YYYY-MM-DD", day)
	}
	return t, nil
}
