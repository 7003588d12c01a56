package storage

import (
	"fmt"
	"log/slog"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindBadger = "badger"
)

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string {
	return KindMemory
}

// NewStore builds a backend by kind. path is the sqlite database file or the
// badger directory; it is ignored by the memory backend.
func NewStore(kind, path string) (Store, error) {
	return NewStoreWithLogger(kind, path, nil)
}

// NewStoreWithLogger is NewStore with backend logs routed to logger.
func NewStoreWithLogger(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(path)
	case KindBadger:
		return NewBadgerStore(BadgerConfig{Path: path, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
