package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aidarbekov/walletd/internal/domain"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Insert(ctx context.Context, t *domain.Token) error {
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tokens (hash, value, balance, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Hash, t.Value, t.Balance, meta, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetAll(ctx context.Context) ([]domain.Token, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT hash, value, balance, metadata, created_at, updated_at
		 FROM tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*domain.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT hash, value, balance, metadata, created_at, updated_at
		 FROM tokens WHERE hash = ?`, hash)

	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TokenRepository) Save(ctx context.Context, t *domain.Token) error {
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET value = ?, balance = ?, metadata = ?, updated_at = ?
		 WHERE hash = ?`,
		t.Value, t.Balance, meta, t.UpdatedAt, t.Hash,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update token rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) Delete(ctx context.Context, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE hash = ?`, hash)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *TokenRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens`); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// scannable is satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanToken(row scannable) (*domain.Token, error) {
	var (
		t    domain.Token
		meta string
	)
	err := row.Scan(&t.Hash, &t.Value, &t.Balance, &meta, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	return &t, nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode token metadata: %w", err)
	}
	return string(b), nil
}
