package repository

import (
	"context"

	"github.com/aidarbekov/walletd/internal/domain"
)

type TokenRepository interface {
	Insert(ctx context.Context, t *domain.Token) error
	// GetAll returns all tokens, oldest first. Implementations return
	// copies; callers own the result.
	GetAll(ctx context.Context) ([]domain.Token, error)
	// GetByHash returns domain.ErrTokenNotFound for an unknown hash.
	GetByHash(ctx context.Context, hash string) (*domain.Token, error)
	// Save replaces the full row. Returns domain.ErrTokenNotFound if the
	// hash is absent.
	Save(ctx context.Context, t *domain.Token) error
	// Delete removes the token if present and reports whether a row was
	// actually removed. Deleting a missing hash is not an error.
	Delete(ctx context.Context, hash string) (bool, error)
	Clear(ctx context.Context) error
}
