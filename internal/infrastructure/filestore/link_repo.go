package filestore

import (
	"context"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
)

type MagicLinkRepository struct {
	store *Store
}

func NewMagicLinkRepository(store *Store) *MagicLinkRepository {
	return &MagicLinkRepository{store: store}
}

func (r *MagicLinkRepository) Create(_ context.Context, link *domain.MagicLink) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	links := map[string]domain.MagicLink{}
	if err := r.store.read(KeyLinks, &links); err != nil {
		return err
	}
	links[link.TokenHash] = *link
	return r.store.write(KeyLinks, links)
}

func (r *MagicLinkRepository) GetByHash(_ context.Context, tokenHash string) (*domain.MagicLink, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	links := map[string]domain.MagicLink{}
	if err := r.store.read(KeyLinks, &links); err != nil {
		return nil, err
	}
	l, ok := links[tokenHash]
	if !ok {
		return nil, domain.ErrLinkNotFound
	}
	return &l, nil
}

func (r *MagicLinkRepository) MarkUsed(_ context.Context, tokenHash string, usedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	links := map[string]domain.MagicLink{}
	if err := r.store.read(KeyLinks, &links); err != nil {
		return err
	}
	l, ok := links[tokenHash]
	if !ok {
		return domain.ErrLinkNotFound
	}
	if l.UsedAt != nil {
		return domain.ErrLinkUsed
	}
	l.UsedAt = &usedAt
	links[tokenHash] = l
	return r.store.write(KeyLinks, links)
}

func (r *MagicLinkRepository) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	links := map[string]domain.MagicLink{}
	if err := r.store.read(KeyLinks, &links); err != nil {
		return 0, err
	}
	var removed int64
	for hash, l := range links {
		if l.UsedAt != nil || l.ExpiresAt.Before(cutoff) {
			delete(links, hash)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.store.write(KeyLinks, links)
}
