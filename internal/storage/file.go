package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

const (
	lockTimeout   = 3 * time.Second
	lockRetryTick = 100 * time.Millisecond
)

var ErrEncrypted = errors.New("data file is encrypted; a passphrase is required")

// FileStore keeps the snapshot in a single JSON file. A sibling .lock file
// guards it against other processes, and writes go through a temporary file
// and a rename so readers never see a partial snapshot.
type FileStore struct {
	path       string
	passphrase string
	fileLock   *flock.Flock
	mu         sync.RWMutex
}

// NewFileStore opens path, sealing snapshots when passphrase is non-empty.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("data file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		path:       path,
		passphrase: passphrase,
		fileLock:   flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) lock(ctx context.Context, exclusive bool) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = s.fileLock.TryLockContext(ctx, lockRetryTick)
	} else {
		locked, err = s.fileLock.TryRLockContext(ctx, lockRetryTick)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire file lock")
	}
	return func() { _ = s.fileLock.Unlock() }, nil
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return emptySnapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return emptySnapshot, nil
	}
	return s.decode(data)
}

func (s *FileStore) decode(data []byte) ([]byte, error) {
	sealed := data[0] == '{'
	switch {
	case sealed && s.passphrase == "":
		return nil, ErrEncrypted
	case !sealed && s.passphrase == "":
		return data, nil
	case !sealed:
		// A plain file is sealed on the next save.
		return data, nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse encrypted data file: %w", err)
	}
	plaintext, err := Unseal(&env, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data file: %w", err)
	}
	return plaintext, nil
}

func (s *FileStore) Save(ctx context.Context, snapshot []byte) error {
	data := snapshot
	if s.passphrase != "" {
		env, err := Seal(snapshot, s.passphrase)
		if err != nil {
			return fmt.Errorf("failed to encrypt snapshot: %w", err)
		}
		data, err = json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return s.fileLock.Close()
}
