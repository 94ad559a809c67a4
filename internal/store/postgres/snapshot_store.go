package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonpham-org/poly/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. Depth
// levels are stored as JSONB arrays.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given connection
// pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `id, token_id, market_slug, "timestamp", bids, asks, spread, midpoint`

func scanSnapshotRows(rows pgx.Rows) ([]domain.OrderbookSnapshot, error) {
	var snaps []domain.OrderbookSnapshot
	for rows.Next() {
		var s domain.OrderbookSnapshot
		var bids, asks []byte
		if err := rows.Scan(
			&s.ID, &s.TokenID, &s.MarketSlug, &s.Timestamp,
			&bids, &asks, &s.Spread, &s.Midpoint,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bids, &s.Bids); err != nil {
			return nil, fmt.Errorf("decode bids for snapshot %d: %w", s.ID, err)
		}
		if err := json.Unmarshal(asks, &s.Asks); err != nil {
			return nil, fmt.Errorf("decode asks for snapshot %d: %w", s.ID, err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// Insert writes one point-in-time depth capture. Snapshots are immutable;
// there is no update path.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.OrderbookSnapshot) error {
	bids, err := json.Marshal(snap.Bids)
	if err != nil {
		return fmt.Errorf("postgres: encode bids: %w", err)
	}
	asks, err := json.Marshal(snap.Asks)
	if err != nil {
		return fmt.Errorf("postgres: encode asks: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orderbook_snapshots (token_id, market_slug, "timestamp", bids, asks, spread, midpoint)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.TokenID, snap.MarketSlug, snap.Timestamp, bids, asks, snap.Spread, snap.Midpoint,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot for %s: %w", snap.MarketSlug, err)
	}
	return nil
}

// ListBySlug returns snapshots for a market ordered oldest-first, with
// optional time filtering.
func (s *SnapshotStore) ListBySlug(ctx context.Context, slug string, opts domain.ListOpts) ([]domain.OrderbookSnapshot, error) {
	query := `SELECT ` + snapshotCols + ` FROM orderbook_snapshots WHERE market_slug = $1`
	args := []any{slug}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(` AND "timestamp" >= $%d`, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(` AND "timestamp" <= $%d`, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += ` ORDER BY "timestamp" ASC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", slug, err)
	}
	defer rows.Close()

	snaps, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots for %s: %w", slug, err)
	}
	return snaps, nil
}

// ListBefore returns snapshots older than cutoff, oldest first, capped at
// limit. Used by the cold-storage archiver.
func (s *SnapshotStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.OrderbookSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotCols+` FROM orderbook_snapshots WHERE "timestamp" < $1 ORDER BY "timestamp" ASC LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %v: %w", cutoff, err)
	}
	defer rows.Close()

	snaps, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots before %v: %w", cutoff, err)
	}
	return snaps, nil
}

// DeleteByIDs removes exactly the given snapshot rows and reports how many
// were deleted.
func (s *SnapshotStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM orderbook_snapshots WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d snapshots: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}
