package filestore

import (
	"context"

	"github.com/aidarbekov/walletd/internal/domain"
)

type TokenRepository struct {
	store *Store
}

func NewTokenRepository(store *Store) *TokenRepository {
	return &TokenRepository{store: store}
}

func (r *TokenRepository) Insert(_ context.Context, t *domain.Token) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var tokens []domain.Token
	if err := r.store.read(KeyTokens, &tokens); err != nil {
		return err
	}
	tokens = append(tokens, *t.Clone())
	return r.store.write(KeyTokens, tokens)
}

func (r *TokenRepository) GetAll(_ context.Context) ([]domain.Token, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var tokens []domain.Token
	if err := r.store.read(KeyTokens, &tokens); err != nil {
		return nil, err
	}
	out := make([]domain.Token, 0, len(tokens))
	for i := range tokens {
		out = append(out, *tokens[i].Clone())
	}
	return out, nil
}

func (r *TokenRepository) GetByHash(_ context.Context, hash string) (*domain.Token, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var tokens []domain.Token
	if err := r.store.read(KeyTokens, &tokens); err != nil {
		return nil, err
	}
	for i := range tokens {
		if tokens[i].Hash == hash {
			return tokens[i].Clone(), nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

func (r *TokenRepository) Save(_ context.Context, t *domain.Token) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var tokens []domain.Token
	if err := r.store.read(KeyTokens, &tokens); err != nil {
		return err
	}
	for i := range tokens {
		if tokens[i].Hash == t.Hash {
			tokens[i] = *t.Clone()
			return r.store.write(KeyTokens, tokens)
		}
	}
	return domain.ErrTokenNotFound
}

func (r *TokenRepository) Delete(_ context.Context, hash string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var tokens []domain.Token
	if err := r.store.read(KeyTokens, &tokens); err != nil {
		return false, err
	}
	for i := range tokens {
		if tokens[i].Hash == hash {
			tokens = append(tokens[:i], tokens[i+1:]...)
			if err := r.store.write(KeyTokens, tokens); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *TokenRepository) Clear(_ context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.write(KeyTokens, []domain.Token{})
}
