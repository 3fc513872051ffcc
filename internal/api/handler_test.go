package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/data"
	"github.com/devricklin/chatdigest/internal/service"
)

type fixedStatus []service.JobStatus

func (f fixedStatus) Status(now time.Time) []service.JobStatus { return f }

func newTestServer(t *testing.T) (*Server, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	dir := t.TempDir()
	events, err := data.NewEventRepo(filepath.Join(dir, "events.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	artifacts := data.NewArtifactRepo(filepath.Join(dir, "messages"))
	ctx := context.Background()

	put := func(id string, ts time.Time, thread string) {
		require.NoError(t, events.Put(ctx, &domain.CapturedMessage{
			ID: id, ChatID: "-100", Author: "alice", Text: "msg " + id,
			Timestamp: ts, ThreadID: domain.StringPtr(thread),
		}))
	}
	put("1", time.Date(2024, 3, 1, 0, 30, 0, 0, loc), "")
	put("2", time.Date(2024, 3, 1, 23, 59, 0, 0, loc), "")
	put("3", time.Date(2024, 3, 1, 12, 0, 0, 0, loc), "flood")
	put("4", time.Date(2024, 3, 2, 0, 0, 0, 0, loc), "")
	require.NoError(t, artifacts.WriteDigest(ctx, "2024-03-01", "- things happened"))

	s := NewServer(Config{
		ChatID:            "-100",
		ExcludedThreadIDs: []string{"flood"},
		Location:          loc,
	}, events, artifacts, fixedStatus{{Name: "export", At: "21:00"}}, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 2, 10, 0, 0, 0, loc) }
	return s, loc
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := get(t, s.Routes(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)
	w := get(t, s.Routes(), "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "-100", resp.ChatID)
	assert.Equal(t, "Europe/Moscow", resp.Timezone)
	assert.Equal(t, "2024-03-02", resp.Today)
	assert.Equal(t, 4, resp.StoredMessages)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "export", resp.Jobs[0].Name)
}

func TestHandleDigest(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()

	w := get(t, h, "/api/digests/2024-03-01")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "- things happened", body["text"])

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/digests/2024-03-05").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/digests/yesterday").Code)
}

func TestHandleMessages(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()

	var body struct {
		Day      string            `json:"day"`
		Messages []messageResponse `json:"messages"`
	}

	w := get(t, h, "/api/messages?day=2024-03-01")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-01", body.Day)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "1", body.Messages[0].ID)
	assert.Equal(t, "2", body.Messages[1].ID)

	w = get(t, h, "/api/messages")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-02", body.Day)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "4", body.Messages[0].ID)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/messages?day=03/01").Code)
}
