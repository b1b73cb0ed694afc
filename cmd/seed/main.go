// seed signs in a dev user and inserts a handful of demo tokens into
// the local data directory. Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/infrastructure/storage"
)

const seedEmail = "seed@wallet.local"

type tokenSpec struct {
	hash    string
	value   string
	balance float64
	kind    string
}

var tokens = []tokenSpec{
	{"seed-gold-001", "gold", 100, "demo"},
	{"seed-gold-002", "gold", 42.5, "demo"},
	{"seed-silver-001", "silver", 10, "demo"},
	{"seed-silver-002", "silver", 0, "demo"},
	{"seed-voucher-001", "voucher", 25, "promo"},
}

func main() {
	ctx := context.Background()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = filepath.Join(dataDir, "wallet.db")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := storage.Open(sqlitePath, dataDir, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	err = store.Session.Put(ctx, &domain.User{
		Email:      seedEmail,
		AuthMethod: domain.AuthMethodMagicLink,
		LastLogin:  now,
	})
	if err != nil {
		log.Fatalf("seed session: %v", err)
	}
	fmt.Printf("signed in %s\n", seedEmail)

	var inserted int
	for _, spec := range tokens {
		token := &domain.Token{
			Hash:      spec.hash,
			Value:     spec.value,
			Balance:   spec.balance,
			Metadata:  map[string]any{"kind": spec.kind, "seeded": true},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Tokens.Insert(ctx, token); err != nil {
			fmt.Printf("skip %s: %v\n", spec.hash, err)
			continue
		}
		inserted++
	}

	fmt.Printf("seeded %d tokens (%s backend)\n", inserted, store.Mode())
}
