package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonpham-org/poly/internal/domain"
)

// TrackedMarketStore implements domain.TrackedMarketStore using PostgreSQL.
type TrackedMarketStore struct {
	pool *pgxpool.Pool
}

// NewTrackedMarketStore creates a TrackedMarketStore backed by the given
// connection pool.
func NewTrackedMarketStore(pool *pgxpool.Pool) *TrackedMarketStore {
	return &TrackedMarketStore{pool: pool}
}

const trackedMarketCols = `id, slug, question, condition_id, token_id_yes,
	token_id_no, active, created_at, updated_at`

func scanTrackedMarket(row pgx.Row) (domain.TrackedMarket, error) {
	var m domain.TrackedMarket
	err := row.Scan(
		&m.ID, &m.Slug, &m.Question, &m.ConditionID,
		&m.TokenIDYes, &m.TokenIDNo, &m.Active,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// Upsert registers a market for tracking. Re-tracking an existing slug
// refreshes its metadata and re-activates it rather than creating a second
// row.
func (s *TrackedMarketStore) Upsert(ctx context.Context, m domain.TrackedMarket) (domain.TrackedMarket, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tracked_markets (slug, question, condition_id, token_id_yes, token_id_no, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (slug) DO UPDATE SET
			question = EXCLUDED.question,
			condition_id = EXCLUDED.condition_id,
			token_id_yes = EXCLUDED.token_id_yes,
			token_id_no = EXCLUDED.token_id_no,
			active = TRUE,
			updated_at = now()
		RETURNING `+trackedMarketCols,
		m.Slug, m.Question, m.ConditionID, m.TokenIDYes, m.TokenIDNo,
	)

	out, err := scanTrackedMarket(row)
	if err != nil {
		return domain.TrackedMarket{}, fmt.Errorf("postgres: upsert tracked market %s: %w", m.Slug, err)
	}
	return out, nil
}

// GetBySlug returns the tracked market with the given slug, or
// domain.ErrNotFound.
func (s *TrackedMarketStore) GetBySlug(ctx context.Context, slug string) (domain.TrackedMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+trackedMarketCols+` FROM tracked_markets WHERE slug = $1`, slug)

	m, err := scanTrackedMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TrackedMarket{}, fmt.Errorf("postgres: tracked market %s: %w", slug, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TrackedMarket{}, fmt.Errorf("postgres: get tracked market %s: %w", slug, err)
	}
	return m, nil
}

// ListActive returns every market currently under observation.
func (s *TrackedMarketStore) ListActive(ctx context.Context) ([]domain.TrackedMarket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+trackedMarketCols+` FROM tracked_markets WHERE active ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active tracked markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.TrackedMarket
	for rows.Next() {
		m, err := scanTrackedMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan tracked market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// SetActive flips the active flag for a slug. It returns domain.ErrNotFound
// when no such market is tracked.
func (s *TrackedMarketStore) SetActive(ctx context.Context, slug string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracked_markets SET active = $2, updated_at = now() WHERE slug = $1`,
		slug, active,
	)
	if err != nil {
		return fmt.Errorf("postgres: set tracked market %s active=%t: %w", slug, active, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: tracked market %s: %w", slug, domain.ErrNotFound)
	}
	return nil
}
