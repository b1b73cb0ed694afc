package repository

import (
	"context"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
)

type MagicLinkRepository interface {
	Create(ctx context.Context, link *domain.MagicLink) error
	// GetByHash returns domain.ErrLinkNotFound for an unknown hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.MagicLink, error)
	// MarkUsed sets UsedAt. Returns domain.ErrLinkNotFound if the hash is
	// absent and domain.ErrLinkUsed if it was already set.
	MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) error
	// DeleteStale removes links that are used, or whose expiry is before
	// cutoff, and reports how many were removed.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
