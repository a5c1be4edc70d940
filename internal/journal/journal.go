// Package journal is the durable append-only log of every event the
// matching engine emits, adapted from the teacher's
// internal/eventsourcing/core BatchEventStore batching pattern: writes can
// be flushed per-record (journal_sync_mode "strict", every event fsynced
// before the matcher is told the write succeeded) or batched on a timer
// (journal_sync_mode "batched", higher throughput, a small window of
// possible loss on crash). Storage is go.etcd.io/bbolt, a pure-Go
// embedded B+tree KV store, one bucket per pair keyed by big-endian seq so
// replay and snapshot recovery can range-scan in order.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/domain"
)

// SyncMode controls when a journal write is acknowledged durable.
type SyncMode string

const (
	// SyncStrict fsyncs every event before Append returns.
	SyncStrict SyncMode = "strict"
	// SyncBatched buffers events and fsyncs on a timer or when the batch
	// fills, trading a small durability window for throughput.
	SyncBatched SyncMode = "batched"
)

// Journal durably appends events for recovery and audit, one bbolt bucket
// per pair.
type Journal struct {
	db     *bolt.DB
	logger *zap.Logger
	mode   SyncMode

	mu            sync.Mutex
	batch         map[string][][]byte // pair -> pending encoded events
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
}

// Open opens (creating if absent) a bbolt database at path.
func Open(path string, mode SyncMode, logger *zap.Logger) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j := &Journal{
		db:            db,
		logger:        logger,
		mode:          mode,
		batch:         make(map[string][][]byte),
		batchSize:     200,
		flushInterval: 50 * time.Millisecond,
		stopCh:        make(chan struct{}),
	}
	if mode == SyncBatched {
		go j.flushLoop()
	}
	return j, nil
}

func (j *Journal) flushLoop() {
	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := j.Flush(); err != nil {
				j.logger.Error("journal: periodic flush failed", zap.Error(err))
			}
		case <-j.stopCh:
			return
		}
	}
}

// Append durably records ev. Under SyncStrict it blocks until fsynced;
// under SyncBatched it buffers and returns immediately, flushing once
// batchSize is reached or the flush timer fires.
func (j *Journal) Append(ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("journal: marshal event: %w", err)
	}

	if j.mode == SyncStrict {
		return j.writeBucket(ev.Pair, [][]byte{encodeKeyValue(ev.Seq, payload)})
	}

	j.mu.Lock()
	j.batch[ev.Pair] = append(j.batch[ev.Pair], encodeKeyValue(ev.Seq, payload))
	full := len(j.batch[ev.Pair]) >= j.batchSize
	j.mu.Unlock()

	if full {
		return j.Flush()
	}
	return nil
}

// Flush writes every buffered batch to bbolt and fsyncs.
func (j *Journal) Flush() error {
	j.mu.Lock()
	pending := j.batch
	j.batch = make(map[string][][]byte)
	j.mu.Unlock()

	for pair, entries := range pending {
		if len(entries) == 0 {
			continue
		}
		if err := j.writeBucket(pair, entries); err != nil {
			return err
		}
	}
	return nil
}

func encodeKeyValue(seq uint64, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf[:8], seq)
	copy(buf[8:], payload)
	return buf
}

func (j *Journal) writeBucket(pair string, entries [][]byte) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(pair))
		if err != nil {
			return err
		}
		for _, entry := range entries {
			seq := entry[:8]
			payload := entry[8:]
			if err := bucket.Put(seq, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replay reads every event for pair in seq order, calling fn for each.
// The engine does not call it at startup: in-memory books start empty
// and are not rebuilt from the journal.
func (j *Journal) Replay(ctx context.Context, pair string, fn func(domain.Event) error) error {
	return j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pair))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var ev domain.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("journal: decode event at seq %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops the flush loop, flushes any remainder, and closes bbolt.
func (j *Journal) Close() error {
	if j.mode == SyncBatched {
		close(j.stopCh)
	}
	if err := j.Flush(); err != nil {
		return err
	}
	return j.db.Close()
}
