package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/domain"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "snap.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewBoltStore(db)
	require.NoError(t, err)
	return store
}

func TestSnapshotSaveAndLoadRoundTrips(t *testing.T) {
	store := openTestStore(t)
	s, err := New("BTC-USD", DefaultConfig(), store, zap.NewNop())
	require.NoError(t, err)

	payload := domain.BookSnapshotPayload{
		Bids:      []domain.PriceLevelView{{Price: "100.00", TotalQty: "1.0000", OrderCount: 1}},
		LastPrice: "100.00",
		HasLast:   true,
	}
	require.NoError(t, s.Save(context.Background(), payload, 42))

	loaded, seq, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), seq)
	assert.Equal(t, payload.LastPrice, loaded.LastPrice)
	require.Len(t, loaded.Bids, 1)
	assert.Equal(t, "100.00", loaded.Bids[0].Price)
}

func TestSnapshotLoadMissingPairIsFalse(t *testing.T) {
	store := openTestStore(t)
	s, err := New("ETH-USD", DefaultConfig(), store, zap.NewNop())
	require.NoError(t, err)

	_, _, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotterTriggersOnEventThreshold(t *testing.T) {
	store := openTestStore(t)
	cfg := Config{Frequency: time.Hour, EventThreshold: 3}
	s, err := New("BTC-USD", cfg, store, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, s.OnEvent())
	assert.False(t, s.OnEvent())
	assert.True(t, s.OnEvent())
}
