package filestore

import (
	"context"

	"github.com/aidarbekov/walletd/internal/domain"
)

type SyncLogRepository struct {
	store *Store
}

func NewSyncLogRepository(store *Store) *SyncLogRepository {
	return &SyncLogRepository{store: store}
}

// Append keeps the log newest-first in the file, trimmed to limit.
func (r *SyncLogRepository) Append(_ context.Context, event domain.SyncEvent, limit int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var log []domain.SyncEvent
	if err := r.store.read(KeySyncLog, &log); err != nil {
		return err
	}
	log = append([]domain.SyncEvent{event}, log...)
	if len(log) > limit {
		log = log[:limit]
	}
	return r.store.write(KeySyncLog, log)
}

func (r *SyncLogRepository) Recent(_ context.Context, limit int) ([]domain.SyncEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var log []domain.SyncEvent
	if err := r.store.read(KeySyncLog, &log); err != nil {
		return nil, err
	}
	if len(log) > limit {
		log = log[:limit]
	}
	out := make([]domain.SyncEvent, len(log))
	copy(out, log)
	return out, nil
}
