// Package storage keeps the server's copy of the contact collection.
package storage

import (
	"context"
	"fmt"

	"rhystmorgan/mira/internal/config"
)

// emptySnapshot is what a backend returns before anything was saved.
var emptySnapshot = []byte("[]")

// Backend stores one snapshot, the JSON array of every contact. Save replaces
// it wholesale.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, snapshot []byte) error
	Close() error
}

// Open builds the backend selected by cfg.
func Open(cfg config.ServerConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.DataFile, cfg.Passphrase.Reveal())
	case config.BackendSQLite:
		if cfg.Passphrase != "" {
			return nil, fmt.Errorf("encryption is only supported by the %s backend", config.BackendFile)
		}
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
