package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/data"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	dir := t.TempDir()
	events, err := data.NewEventRepo(filepath.Join(dir, "events.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })
	artifacts := data.NewArtifactRepo(filepath.Join(dir, "messages"))

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, events.Put(ctx, &domain.CapturedMessage{
			ID: id, ChatID: "-100", Author: "alice", Text: "text " + id,
			Timestamp: time.Date(2024, 3, 1, 10, i, 0, 0, loc),
		}))
	}
	require.NoError(t, events.Put(ctx, &domain.CapturedMessage{
		ID: "hidden", ChatID: "-100", Author: "bob", Text: "spam",
		Timestamp: time.Date(2024, 3, 1, 11, 0, 0, 0, loc), ThreadID: domain.StringPtr("flood"),
	}))
	_, err = artifacts.WriteChunks(ctx, "2024-03-01", []string{"a | alice: text a\n", "b | alice: text b\n"})
	require.NoError(t, err)
	require.NoError(t, artifacts.WriteDigest(ctx, "2024-03-01", "- a, b and c"))

	s := NewServer(Config{ChatID: "-100", ExcludedThreadIDs: []string{"flood"}, Location: loc}, events, artifacts, zerolog.Nop())

	ct, st := mcp.NewInMemoryTransports()
	ss, err := s.GetServer().Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call[T any](t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (T, *mcp.CallToolResult) {
	t.Helper()
	var out T
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if res.IsError {
		return out, res
	}
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, res
}

func TestTools_Listed(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_digest", "list_messages", "list_export_chunks"}, names)
}

func TestGetDigest(t *testing.T) {
	cs := connect(t)

	out, _ := call[GetDigestOutput](t, cs, "get_digest", map[string]any{"day": "2024-03-01"})
	assert.True(t, out.Found)
	assert.Equal(t, "- a, b and c", out.Text)

	out, _ = call[GetDigestOutput](t, cs, "get_digest", map[string]any{"day": "2024-03-02"})
	assert.False(t, out.Found)

	_, res := call[GetDigestOutput](t, cs, "get_digest", map[string]any{"day": "March 1"})
	assert.True(t, res.IsError)
}

func TestListMessages(t *testing.T) {
	cs := connect(t)

	out, _ := call[ListMessagesOutput](t, cs, "list_messages", map[string]any{"day": "2024-03-01"})
	assert.Equal(t, 3, out.Total)
	assert.False(t, out.Truncated)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, "a", out.Messages[0].ID)
	assert.Equal(t, "2024-03-01T10:00:00+03:00", out.Messages[0].Time)

	out, _ = call[ListMessagesOutput](t, cs, "list_messages", map[string]any{"day": "2024-03-01", "limit": 2})
	assert.True(t, out.Truncated)
	assert.Len(t, out.Messages, 2)

	out, _ = call[ListMessagesOutput](t, cs, "list_messages", map[string]any{"day": "2024-02-29"})
	assert.Equal(t, 0, out.Total)
	assert.Empty(t, out.Messages)
}

func TestListExportChunks(t *testing.T) {
	cs := connect(t)

	out, _ := call[ListExportChunksOutput](t, cs, "list_export_chunks", map[string]any{"day": "2024-03-01"})
	assert.True(t, out.Exported)
	require.Len(t, out.Chunks, 2)
	assert.Equal(t, "messages_part1.txt", filepath.Base(out.Chunks[0].Path))
	assert.Equal(t, len("a | alice: text a\n"), out.Chunks[0].Bytes)

	out, _ = call[ListExportChunksOutput](t, cs, "list_export_chunks", map[string]any{"day": "2024-03-09"})
	assert.False(t, out.Exported)
	assert.Empty(t, out.Chunks)
}
