package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/domain"
)

func openTestJournal(t *testing.T, mode SyncMode) *Journal {
	t.Helper()
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.db"), mode, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalStrictAppendAndReplay(t *testing.T) {
	j := openTestJournal(t, SyncStrict)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, j.Append(domain.Event{Pair: "BTC-USD", Seq: seq, Type: domain.EventTrade, Ts: time.Unix(0, 0)}))
	}

	var replayed []uint64
	err := j.Replay(context.Background(), "BTC-USD", func(ev domain.Event) error {
		replayed = append(replayed, ev.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, replayed)
}

func TestJournalBatchedFlush(t *testing.T) {
	j := openTestJournal(t, SyncBatched)

	require.NoError(t, j.Append(domain.Event{Pair: "ETH-USD", Seq: 1, Type: domain.EventTrade, Ts: time.Unix(0, 0)}))
	require.NoError(t, j.Flush())

	var count int
	err := j.Replay(context.Background(), "ETH-USD", func(domain.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJournalReplayUnknownPairIsEmpty(t *testing.T) {
	j := openTestJournal(t, SyncStrict)
	var count int
	err := j.Replay(context.Background(), "UNKNOWN", func(domain.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
