package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" sqlx driver
)

// Reporter runs the hand-tuned aggregation queries the read-model's
// gorm-managed tables back: volume bucketing and top makers (there is no
// VWAP query) — the queries gorm's query builder is awkward for, which is
// exactly the case the corpus reaches for sqlx.
type Reporter struct {
	db *sqlx.DB
}

// OpenReporter connects to the same Postgres database the Indexer writes
// to, via the pgx stdlib driver.
func OpenReporter(dsn string) (*Reporter, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: reporter connect: %w", err)
	}
	return &Reporter{db: db}, nil
}

// VolumeBucket is one time-bucketed row of traded volume for a pair.
type VolumeBucket struct {
	BucketStart time.Time `db:"bucket_start"`
	TradeCount  int64     `db:"trade_count"`
	TotalQty    string    `db:"total_qty"`
}

// VolumeByMinute returns per-minute traded volume for pair since since.
func (r *Reporter) VolumeByMinute(ctx context.Context, pair string, since time.Time) ([]VolumeBucket, error) {
	const q = `
		SELECT date_trunc('minute', ts) AS bucket_start,
		       count(*)                 AS trade_count,
		       sum(qty::numeric)::text  AS total_qty
		FROM trades
		WHERE pair = $1 AND ts >= $2
		GROUP BY bucket_start
		ORDER BY bucket_start`
	var out []VolumeBucket
	if err := r.db.SelectContext(ctx, &out, q, pair, since); err != nil {
		return nil, fmt.Errorf("persistence: volume by minute: %w", err)
	}
	return out, nil
}

// TopMaker is one row of a maker leaderboard.
type TopMaker struct {
	MakerOrderID string `db:"maker_order_id"`
	TradeCount   int64  `db:"trade_count"`
}

// TopMakers returns the most active resting makers for pair.
func (r *Reporter) TopMakers(ctx context.Context, pair string, limit int) ([]TopMaker, error) {
	const q = `
		SELECT maker_order_id, count(*) AS trade_count
		FROM trades
		WHERE pair = $1
		GROUP BY maker_order_id
		ORDER BY trade_count DESC
		LIMIT $2`
	var out []TopMaker
	if err := r.db.SelectContext(ctx, &out, q, pair, limit); err != nil {
		return nil, fmt.Errorf("persistence: top makers: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *Reporter) Close() error {
	return r.db.Close()
}
