// Package storage selects the persistence backend at startup: SQLite
// when the engine can be opened, the flat-file store otherwise. The
// choice is made once and holds for the life of the process; per-call
// failures after that never switch the backend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/aidarbekov/walletd/internal/infrastructure/filestore"
	"github.com/aidarbekov/walletd/internal/infrastructure/sqlite"
	"github.com/aidarbekov/walletd/internal/repository"
)

type Mode string

const (
	ModeSQLite Mode = "sqlite"
	ModeFile   Mode = "file"
)

type Storage struct {
	Tokens  repository.TokenRepository
	Links   repository.MagicLinkRepository
	Session repository.SessionRepository
	SyncLog repository.SyncLogRepository

	mode Mode
	db   *sql.DB // nil in file mode
	dir  string
}

// Open probes SQLite first and degrades to the file store on any open
// failure. Degrading is a mode switch, not an error; an error is only
// returned when the fallback itself cannot be set up.
func Open(sqlitePath, dataDir string, logger *slog.Logger) (*Storage, error) {
	db, err := sqlite.Open(sqlitePath)
	if err == nil {
		return &Storage{
			Tokens:  sqlite.NewTokenRepository(db),
			Links:   sqlite.NewMagicLinkRepository(db),
			Session: sqlite.NewSessionRepository(db),
			SyncLog: sqlite.NewSyncLogRepository(db),
			mode:    ModeSQLite,
			db:      db,
		}, nil
	}

	logger.Warn("sqlite unavailable, using file store for this run", "path", sqlitePath, "error", err)

	store, err := filestore.New(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	return &Storage{
		Tokens:  filestore.NewTokenRepository(store),
		Links:   filestore.NewMagicLinkRepository(store),
		Session: filestore.NewSessionRepository(store),
		SyncLog: filestore.NewSyncLogRepository(store),
		mode:    ModeFile,
		dir:     store.Dir(),
	}, nil
}

func (s *Storage) Mode() Mode { return s.mode }

// Ping reports whether the backend is still usable. Satisfies the
// health checker's Pinger.
func (s *Storage) Ping(ctx context.Context) error {
	if s.db != nil {
		return s.db.PingContext(ctx)
	}
	_, err := os.Stat(s.dir)
	return err
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
