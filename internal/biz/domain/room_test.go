package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomSnapshot_NovelAndReplace(t *testing.T) {
	s := NewRoomSnapshot(Room{ID: "r1", Kind: RoomKindGroup})
	s.Replace(map[string]struct{}{"A": {}, "B": {}})

	current := []SnapshotMessage{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	novel := s.Novel(current)

	var ids []string
	for _, m := range novel {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"C", "D"}, ids)

	s.Replace(SnapshotIDs(current))
	assert.Len(t, s.Seen, 4)
	assert.True(t, s.Baselined)

	// replace, not union: ids missing from the newest snapshot are forgotten
	s.Replace(SnapshotIDs([]SnapshotMessage{{ID: "C"}, {ID: "D"}}))
	assert.NotContains(t, s.Seen, "A")
	assert.Len(t, s.Seen, 2)
}

func TestSortBySentAt(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	msgs := []SnapshotMessage{
		{ID: "late", SentAt: base.Add(2 * time.Minute)},
		{ID: "tie-1", SentAt: base},
		{ID: "tie-2", SentAt: base},
		{ID: "mid", SentAt: base.Add(time.Minute)},
	}
	SortBySentAt(msgs)

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"tie-1", "tie-2", "mid", "late"}, ids)
}

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "group_abc", Room{ID: "abc", Kind: RoomKindGroup}.Key())
	assert.Equal(t, "channel_abc", Room{ID: "abc", Kind: RoomKindChannel}.Key())
}
