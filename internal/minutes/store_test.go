package minutes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soracane/larkbridge/internal/model"
)

func TestStoreGetKeepsAction(t *testing.T) {
	s := NewStore()
	s.Put(model.PendingAction{ID: "a1", Type: model.ActionExtractTasks, CreatedAt: time.Now()})

	got, ok := s.Get("a1")
	require.True(t, ok)
	assert.Equal(t, model.ActionExtractTasks, got.Type)

	_, ok = s.Get("a1")
	assert.True(t, ok)
}

func TestStoreTakeConsumes(t *testing.T) {
	s := NewStore()
	s.Put(model.PendingAction{ID: "a1", CreatedAt: time.Now()})

	_, ok := s.Take("a1")
	require.True(t, ok)

	_, ok = s.Take("a1")
	assert.False(t, ok)
	_, ok = s.Get("a1")
	assert.False(t, ok)
}

func TestStoreTakeUnknown(t *testing.T) {
	s := NewStore()
	_, ok := s.Take("missing")
	assert.False(t, ok)
}

func TestStoreSweepRemovesOnlyExpired(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	s.now = func() time.Time { return base }

	s.Put(model.PendingAction{ID: "old", CreatedAt: base.Add(-2 * time.Hour)})
	s.Put(model.PendingAction{ID: "fresh", CreatedAt: base.Add(-10 * time.Minute)})

	removed := s.Sweep(time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("old")
	assert.False(t, ok)
	_, ok = s.Get("fresh")
	assert.True(t, ok)
}
