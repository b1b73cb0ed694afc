package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aidarbekov/walletd/internal/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(ctx context.Context) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT email, auth_method, last_login FROM session WHERE id = 1`)

	var u domain.User
	err := row.Scan(&u.Email, &u.AuthMethod, &u.LastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoSession
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &u, nil
}

func (r *SessionRepository) Put(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session (id, email, auth_method, last_login) VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET email = excluded.email,
		     auth_method = excluded.auth_method, last_login = excluded.last_login`,
		user.Email, user.AuthMethod, user.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
