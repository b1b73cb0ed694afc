package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aidarbekov/walletd/internal/domain"
)

type SyncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Append(ctx context.Context, event domain.SyncEvent, limit int) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode sync event data: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync log tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_log (type, data, timestamp, source) VALUES (?, ?, ?, ?)`,
		event.Type, string(data), event.Timestamp, event.Source,
	)
	if err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}

	// Trim oldest entries beyond the cap.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM sync_log WHERE id NOT IN
		   (SELECT id FROM sync_log ORDER BY id DESC LIMIT ?)`, limit)
	if err != nil {
		return fmt.Errorf("trim sync log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync log tx: %w", err)
	}
	return nil
}

func (r *SyncLogRepository) Recent(ctx context.Context, limit int) ([]domain.SyncEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, data, timestamp, source FROM sync_log
		 ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync log: %w", err)
	}
	defer rows.Close()

	var events []domain.SyncEvent
	for rows.Next() {
		var (
			e    domain.SyncEvent
			data string
		)
		if err := rows.Scan(&e.Type, &data, &e.Timestamp, &e.Source); err != nil {
			return nil, fmt.Errorf("scan sync event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("decode sync event data: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync log: %w", err)
	}
	return events, nil
}
