package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/infrastructure/filestore"
	"github.com/fsnotify/fsnotify"
)

// FileTransport is the degraded path: every send rewrites one shared
// "last event" file, and receivers watch the data directory for that
// file changing. Rapid sends coalesce — a receiver only ever sees the
// latest envelope, which matches the semantics of the storage-event
// fallback this replaces.
type FileTransport struct {
	dir    string
	path   string
	logger *slog.Logger

	mu sync.Mutex // serializes Send's write+rename
}

func NewFileTransport(dir string, logger *slog.Logger) (*FileTransport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileTransport{
		dir:    dir,
		path:   filestore.Path(dir, filestore.KeySyncEvent),
		logger: logger.With("component", "file_transport"),
	}, nil
}

func (t *FileTransport) Send(_ context.Context, event domain.SyncEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode sync event: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Atomic replace: watchers never observe a torn write.
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write sync event: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace sync event: %w", err)
	}
	return nil
}

func (t *FileTransport) Listen(_ context.Context, fn func(domain.SyncEvent)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(t.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", t.dir, err)
	}

	go func() {
		var last []byte
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != t.path || !ev.Has(fsnotify.Create|fsnotify.Write) {
					continue
				}
				payload, err := os.ReadFile(t.path)
				if err != nil {
					if !errors.Is(err, fs.ErrNotExist) {
						t.logger.Warn("read sync event", "error", err)
					}
					continue
				}
				// Rename can surface as create+write; drop repeats.
				if string(payload) == string(last) {
					continue
				}
				last = payload

				var event domain.SyncEvent
				if err := json.Unmarshal(payload, &event); err != nil {
					t.logger.Warn("drop malformed sync event", "error", err)
					continue
				}
				fn(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				t.logger.Warn("sync event watcher", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

func (t *FileTransport) Close() error { return nil }
