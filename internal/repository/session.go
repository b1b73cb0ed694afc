package repository

import (
	"context"

	"github.com/aidarbekov/walletd/internal/domain"
)

type SessionRepository interface {
	// Get returns domain.ErrNoSession when no user is signed in.
	Get(ctx context.Context) (*domain.User, error)
	// Put replaces the current user. There is at most one.
	Put(ctx context.Context, user *domain.User) error
	Clear(ctx context.Context) error
}
