package repository

import (
	"context"

	"github.com/aidarbekov/walletd/internal/domain"
)

type SyncLogRepository interface {
	// Append prepends the event and trims the log to at most limit
	// entries, dropping the oldest.
	Append(ctx context.Context, event domain.SyncEvent, limit int) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.SyncEvent, error)
}
