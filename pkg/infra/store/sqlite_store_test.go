package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

func newTestStore(t *testing.T) *SQLiteRunStore {
	t.Helper()
	s, err := NewSQLiteRunStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, startedAt time.Time) pipeline.RunRecord {
	return pipeline.RunRecord{
		ID:               id,
		SessionTimestamp: "20260830-120000",
		StoryID:          "story-42",
		EpisodeNumber:    3,
		TotalBeats:       12,
		FinalPhase:       pipeline.PhaseComplete,
		StartedAt:        startedAt,
		FinishedAt:       startedAt.Add(time.Minute),
	}
}

func TestSQLiteStoreAppendAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := testRecord("run-1", time.Now().UTC().Truncate(time.Second))
	record.Error = "Timeout waiting for prompts"
	record.FinalPhase = pipeline.PhaseError
	require.NoError(t, s.Append(ctx, record))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.StoryID, got.StoryID)
	assert.Equal(t, record.EpisodeNumber, got.EpisodeNumber)
	assert.Equal(t, record.TotalBeats, got.TotalBeats)
	assert.Equal(t, pipeline.PhaseError, got.FinalPhase)
	assert.Equal(t, record.Error, got.Error)
	assert.True(t, record.StartedAt.Equal(got.StartedAt))
}

func TestSQLiteStoreGetUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, pipeline.ErrRecordNotFound)
}

func TestSQLiteStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	ids := []string{"run-1", "run-2", "run-3"}
	for i, id := range ids {
		require.NoError(t, s.Append(ctx, testRecord(id, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "run-3", records[0].ID)
	assert.Equal(t, "run-1", records[2].ID)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-3", limited[0].ID)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := NewSQLiteRunStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, testRecord("run-1", time.Now().UTC())))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteRunStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "story-42", got.StoryID)
}

func TestSQLiteStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "history.db")

	s, err := NewSQLiteRunStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(context.Background(), testRecord("run-1", time.Now().UTC())))
}
