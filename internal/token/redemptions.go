package token

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RedemptionStore makes a token single-use by remembering its ID until it
// expires.
type RedemptionStore struct {
	pool *pgxpool.Pool
}

// NewRedemptionStore creates a RedemptionStore backed by the given pool.
func NewRedemptionStore(pool *pgxpool.Pool) *RedemptionStore {
	return &RedemptionStore{pool: pool}
}

// Redeem marks id as used. It fails with ErrTokenUsed when id was redeemed
// before. Expired entries are purged on the way.
func (s *RedemptionStore) Redeem(ctx context.Context, id string, expiresAt time.Time) error {
	result, err := s.pool.Exec(ctx, `
		WITH purged AS (DELETE FROM magic_link_redemptions WHERE expires_at < NOW())
		INSERT INTO magic_link_redemptions (token_id, expires_at) VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("redeeming token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTokenUsed
	}
	return nil
}
