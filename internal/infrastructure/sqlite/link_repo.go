package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
)

type MagicLinkRepository struct {
	db *sql.DB
}

func NewMagicLinkRepository(db *sql.DB) *MagicLinkRepository {
	return &MagicLinkRepository{db: db}
}

func (r *MagicLinkRepository) Create(ctx context.Context, link *domain.MagicLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_links (token_hash, email, expires_at, used_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		link.TokenHash, link.Email, link.ExpiresAt, link.UsedAt, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert magic link: %w", err)
	}
	return nil
}

func (r *MagicLinkRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.MagicLink, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT token_hash, email, expires_at, used_at, created_at
		 FROM magic_links WHERE token_hash = ?`, tokenHash)

	var (
		l    domain.MagicLink
		used sql.NullTime
	)
	err := row.Scan(&l.TokenHash, &l.Email, &l.ExpiresAt, &used, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("scan magic link: %w", err)
	}
	if used.Valid {
		l.UsedAt = &used.Time
	}
	return &l, nil
}

// MarkUsed claims the link. The used_at IS NULL guard makes redemption
// single-shot even if two verifications race.
func (r *MagicLinkRepository) MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE magic_links SET used_at = ? WHERE token_hash = ? AND used_at IS NULL`,
		usedAt, tokenHash,
	)
	if err != nil {
		return fmt.Errorf("mark magic link used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark magic link rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByHash(ctx, tokenHash); err != nil {
			return err
		}
		return domain.ErrLinkUsed
	}
	return nil
}

func (r *MagicLinkRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM magic_links WHERE used_at IS NOT NULL OR expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale magic links: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale rows affected: %w", err)
	}
	return n, nil
}
