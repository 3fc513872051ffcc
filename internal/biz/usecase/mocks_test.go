package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/devricklin/chatdigest/internal/biz/domain"
)

// Mock implementations

type mockEventRepo struct {
	mu      sync.Mutex
	msgs    []*domain.CapturedMessage
	putErr  error
	queried int
}

func (m *mockEventRepo) Put(ctx context.Context, msg *domain.CapturedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	for _, existing := range m.msgs {
		if existing.ID == msg.ID {
			return nil
		}
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockEventRepo) Query(ctx context.Context, chatID string, from, to time.Time, excluded []string) ([]*domain.CapturedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried++

	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	var out []*domain.CapturedMessage
	for _, msg := range m.msgs {
		if msg.ChatID != chatID || msg.Timestamp.Before(from) || !msg.Timestamp.Before(to) {
			continue
		}
		if msg.InThread(skip) {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *mockEventRepo) Count(ctx context.Context, chatID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

func (m *mockEventRepo) Close() error { return nil }

type mockArtifactRepo struct {
	mu      sync.Mutex
	days    map[string][]string // day -> chunk texts
	digests map[string]string
	failOn  string
}

func newMockArtifactRepo() *mockArtifactRepo {
	return &mockArtifactRepo{
		days:    make(map[string][]string),
		digests: make(map[string]string),
	}
}

func (m *mockArtifactRepo) DayDir(day string) string { return "/exports/" + day }

func (m *mockArtifactRepo) DayExists(day string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.days[day]
	return ok
}

func (m *mockArtifactRepo) WriteChunks(ctx context.Context, day string, chunks []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "write_chunks" {
		return nil, errors.New("disk full")
	}
	m.days[day] = append([]string{}, chunks...)
	return m.paths(day), nil
}

func (m *mockArtifactRepo) ListChunks(ctx context.Context, day string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paths(day), nil
}

func (m *mockArtifactRepo) paths(day string) []string {
	paths := make([]string, 0, len(m.days[day]))
	for i := range m.days[day] {
		paths = append(paths, chunkPath(day, i))
	}
	return paths
}

func chunkPath(day string, i int) string {
	return fmt.Sprintf("/exports/%s/messages_part%d.txt", day, i+1)
}

func (m *mockArtifactRepo) ReadChunk(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for day, chunks := range m.days {
		for i, c := range chunks {
			if path == chunkPath(day, i) {
				return c, nil
			}
		}
	}
	return "", errors.Errorf("no chunk %s", path)
}

func (m *mockArtifactRepo) WriteDigest(ctx context.Context, day, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digests[day] = text
	return nil
}

func (m *mockArtifactRepo) ReadDigest(ctx context.Context, day string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.digests[day]
	return text, ok, nil
}

type mockSummaryRepo struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) string
	err     error
}

func (m *mockSummaryRepo) Summarize(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.reply != nil {
		return m.reply(prompt), nil
	}
	return "summary", nil
}

type mockChatRepo struct {
	mu   sync.Mutex
	sent []*domain.OutboundMessage
	err  error
}

func (m *mockChatRepo) Send(ctx context.Context, msg *domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockChatRepo) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Text)
	}
	return out
}

type mockRoomRepo struct {
	mu        sync.Mutex
	snapshots map[string][]domain.SnapshotMessage
	errs      map[string]error
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{
		snapshots: make(map[string][]domain.SnapshotMessage),
		errs:      make(map[string]error),
	}
}

func (m *mockRoomRepo) set(room domain.Room, msgs ...domain.SnapshotMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[room.Key()] = msgs
}

func (m *mockRoomRepo) fail(room domain.Room, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, room.Key())
		return
	}
	m.errs[room.Key()] = err
}

func (m *mockRoomRepo) FetchSnapshot(ctx context.Context, room domain.Room) ([]domain.SnapshotMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[room.Key()]; err != nil {
		return nil, err
	}
	return append([]domain.SnapshotMessage{}, m.snapshots[room.Key()]...), nil
}
