// Package snapshot periodically writes a pair's aggregated depth view
// (the BookSnapshot payload, not individual resting orders) to bounded
// storage, adapted from the teacher's internal/eventsourcing/snapshot
// SnapshotManager (frequency/event-threshold triggers, compression,
// retention) but scoped down to one aggregate kind (a pair's Book) and a
// single current snapshot per pair rather than a versioned history.
// Snapshots are written only: nothing in the engine loads one at startup,
// and the in-memory books start empty.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/domain"
)

// Config mirrors the teacher's trigger knobs, narrowed to what a
// single-current-snapshot-per-pair model needs.
type Config struct {
	Frequency      time.Duration
	EventThreshold int
}

// DefaultConfig matches the teacher's defaults scaled down for an
// in-memory matching engine rather than an hourly batch aggregate.
func DefaultConfig() Config {
	return Config{Frequency: 5 * time.Minute, EventThreshold: 10000}
}

// Store persists and retrieves the single current snapshot per pair.
type Store interface {
	Save(ctx context.Context, pair string, data []byte) error
	Load(ctx context.Context, pair string) ([]byte, bool, error)
}

// Snapshotter triggers and writes BookSnapshot payloads for one pair.
type Snapshotter struct {
	pair           string
	cfg            Config
	store          Store
	logger         *zap.Logger
	encoder        *zstd.Encoder
	decoder        *zstd.Decoder
	eventsSinceMu  sync.Mutex
	eventsSince    int
	lastSnapshotAt time.Time
	created        int64
}

// New builds a Snapshotter for pair backed by store.
func New(pair string, cfg Config, store Store, logger *zap.Logger) (*Snapshotter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new decoder: %w", err)
	}
	return &Snapshotter{pair: pair, cfg: cfg, store: store, logger: logger, encoder: enc, decoder: dec, lastSnapshotAt: time.Now()}, nil
}

// OnEvent records one more processed event and reports whether a snapshot
// should now be taken, matching the teacher's dual frequency/threshold
// trigger.
func (s *Snapshotter) OnEvent() bool {
	s.eventsSinceMu.Lock()
	defer s.eventsSinceMu.Unlock()
	s.eventsSince++
	if s.eventsSince >= s.cfg.EventThreshold {
		return true
	}
	return time.Since(s.lastSnapshotAt) >= s.cfg.Frequency && s.eventsSince > 0
}

// Save compresses and persists payload as pair's current snapshot.
func (s *Snapshotter) Save(ctx context.Context, payload domain.BookSnapshotPayload, lastSeq uint64) error {
	raw, err := json.Marshal(snapshotEnvelope{Payload: payload, LastSeq: lastSeq, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	compressed := s.encoder.EncodeAll(raw, nil)

	if err := s.store.Save(ctx, s.pair, compressed); err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}

	s.eventsSinceMu.Lock()
	s.eventsSince = 0
	s.lastSnapshotAt = time.Now()
	s.eventsSinceMu.Unlock()
	atomic.AddInt64(&s.created, 1)

	s.logger.Debug("wrote book snapshot", zap.String("pair", s.pair), zap.Uint64("last_seq", lastSeq), zap.Int("bytes", len(compressed)))
	return nil
}

// Load retrieves and decompresses pair's current snapshot, if any.
func (s *Snapshotter) Load(ctx context.Context) (domain.BookSnapshotPayload, uint64, bool, error) {
	compressed, ok, err := s.store.Load(ctx, s.pair)
	if err != nil || !ok {
		return domain.BookSnapshotPayload{}, 0, false, err
	}
	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return domain.BookSnapshotPayload{}, 0, false, fmt.Errorf("snapshot: decompress: %w", err)
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.BookSnapshotPayload{}, 0, false, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return env.Payload, env.LastSeq, true, nil
}

// Created reports how many snapshots this instance has written.
func (s *Snapshotter) Created() int64 { return atomic.LoadInt64(&s.created) }

type snapshotEnvelope struct {
	Payload   domain.BookSnapshotPayload
	LastSeq   uint64
	CreatedAt time.Time
}
