package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aparsoft/voicekit/internal/tts"
)

// ══════════════════════════════════════════════════════════════════════════════
// Test Helpers
// ══════════════════════════════════════════════════════════════════════════════

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(engine string, age time.Duration) tts.Record {
	return tts.Record{
		ID:         uuid.NewString(),
		Engine:     engine,
		Voice:      "am_adam",
		TextHash:   "deadbeef",
		Duration:   1.5,
		OutputPath: "/tmp/out.wav",
		CreatedAt:  time.Now().UTC().Add(-age),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// Store Tests
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := testRecord("kokoro", time.Hour)
	newer := testRecord("indic", 0)
	require.NoError(t, s.Record(ctx, older))
	require.NoError(t, s.Record(ctx, newer))

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID, "newest first")
	assert.Equal(t, older.ID, records[1].ID)
	assert.Equal(t, "am_adam", records[0].Voice)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, testRecord("kokoro", time.Duration(i)*time.Minute)))
	}

	records, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestByEngine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, testRecord("kokoro", 0)))
	require.NoError(t, s.Record(ctx, testRecord("indic", 0)))
	require.NoError(t, s.Record(ctx, testRecord("kokoro", time.Minute)))

	records, err := s.ByEngine(ctx, "kokoro", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "kokoro", rec.Engine)
	}
}

func TestSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, testRecord("kokoro", 0)))
	require.NoError(t, s.Record(ctx, testRecord("kokoro", 0)))
	require.NoError(t, s.Record(ctx, testRecord("indic", 0)))

	stats, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.InDelta(t, 4.5, stats.TotalDuration, 1e-9)
	assert.Equal(t, 2, stats.ByEngine["kokoro"])
	assert.Equal(t, 1, stats.ByEngine["indic"])
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, testRecord("kokoro", 48*time.Hour)))
	require.NoError(t, s.Record(ctx, testRecord("kokoro", 0)))

	pruned, err := s.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDuplicateIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := testRecord("kokoro", 0)
	require.NoError(t, s.Record(ctx, rec))
	assert.Error(t, s.Record(ctx, rec))
}
