package filestore

import (
	"context"

	"github.com/aidarbekov/walletd/internal/domain"
)

type SessionRepository struct {
	store *Store
}

func NewSessionRepository(store *Store) *SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) Get(_ context.Context) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var u *domain.User
	if err := r.store.read(KeyUser, &u); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNoSession
	}
	return u, nil
}

func (r *SessionRepository) Put(_ context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.write(KeyUser, user)
}

func (r *SessionRepository) Clear(_ context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.remove(KeyUser)
}
