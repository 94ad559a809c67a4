package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonpham-org/poly/internal/domain"
)

// TradeCacheStore implements domain.TradeCacheStore using PostgreSQL.
// Deduplication is enforced by the unique constraint on
// (transaction_hash, condition_id) rather than application-level existence
// checks, which would race under concurrent ingestion.
type TradeCacheStore struct {
	pool *pgxpool.Pool
}

// NewTradeCacheStore creates a TradeCacheStore backed by the given
// connection pool.
func NewTradeCacheStore(pool *pgxpool.Pool) *TradeCacheStore {
	return &TradeCacheStore{pool: pool}
}

const cachedTradeCols = `id, condition_id, market_slug, side, outcome, price,
	size, usdc_amount, "timestamp", maker, taker, transaction_hash, is_mint`

func scanCachedTradeRows(rows pgx.Rows) ([]domain.CachedTrade, error) {
	var trades []domain.CachedTrade
	for rows.Next() {
		var t domain.CachedTrade
		if err := rows.Scan(
			&t.ID, &t.ConditionID, &t.MarketSlug, &t.Side, &t.Outcome,
			&t.Price, &t.Size, &t.USDCAmount, &t.Timestamp,
			&t.Maker, &t.Taker, &t.TransactionHash, &t.IsMint,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// UpsertBatch inserts trades using a pgx Batch with ON CONFLICT DO NOTHING
// on the dedup key. Conflicts are expected and silently tolerated; the
// return value counts only newly inserted rows.
func (s *TradeCacheStore) UpsertBatch(ctx context.Context, trades []domain.CachedTrade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO cached_trades (
			condition_id, market_slug, side, outcome, price, size,
			usdc_amount, "timestamp", maker, taker, transaction_hash, is_mint
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		) ON CONFLICT (transaction_hash, condition_id) DO NOTHING`

	for _, t := range trades {
		batch.Queue(query,
			t.ConditionID, t.MarketSlug, t.Side, t.Outcome, t.Price, t.Size,
			t.USDCAmount, t.Timestamp, t.Maker, t.Taker, t.TransactionHash, t.IsMint,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range trades {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: upsert cached trade batch item %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListByCondition returns cached trades for a condition, newest first, with
// pagination and optional time filtering.
func (s *TradeCacheStore) ListByCondition(ctx context.Context, conditionID string, opts domain.ListOpts) ([]domain.CachedTrade, error) {
	query := `SELECT ` + cachedTradeCols + ` FROM cached_trades WHERE condition_id = $1`
	args := []any{conditionID}
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

	query += ` ORDER BY "timestamp" DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cached trades for %s: %w", conditionID, err)
	}
	defer rows.Close()

	trades, err := scanCachedTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan cached trades for %s: %w", conditionID, err)
	}
	return trades, nil
}

// CountByCondition reports how many trades are cached for a condition.
func (s *TradeCacheStore) CountByCondition(ctx context.Context, conditionID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cached_trades WHERE condition_id = $1`, conditionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count cached trades for %s: %w", conditionID, err)
	}
	return count, nil
}
