package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rhystmorgan/mira/internal/config"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	plain, err := NewFileStore(filepath.Join(dir, "plain", "contacts.json"), "")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	sealed, err := NewFileStore(filepath.Join(dir, "sealed", "contacts.json"), "correct horse")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	db, err := NewSQLiteStore(filepath.Join(dir, "contacts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	all := map[string]Backend{"file": plain, "encrypted": sealed, "sqlite": db}
	t.Cleanup(func() {
		for _, b := range all {
			b.Close()
		}
	})
	return all
}

func TestBackendsLoadEmpty(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			data, err := b.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if string(data) != "[]" {
				t.Errorf("Expected empty array, got %s", data)
			}
		})
	}
}

func TestBackendsReplaceSnapshot(t *testing.T) {
	first := []byte(`[{"id":"1","name":"Ann"},{"id":"2","name":"Bob"}]`)
	second := []byte(`[{"id":"2","name":"Bob"}]`)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.Save(ctx, first); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := b.Save(ctx, second); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			data, err := b.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !bytes.Equal(data, second) {
				t.Errorf("Expected %s, got %s", second, data)
			}
		})
	}
}

func TestEncryptedFileIsNotPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	s, err := NewFileStore(path, "secret")
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	if err := s.Save(context.Background(), []byte(`[{"id":"1","name":"Ann"}]`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.Contains(string(raw), "Ann") {
		t.Error("Expected contact names not to appear in the encrypted file")
	}

	wrong, _ := NewFileStore(path, "guess")
	defer wrong.Close()
	if _, err := wrong.Load(context.Background()); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("Expected ErrBadPassphrase, got %v", err)
	}

	none, _ := NewFileStore(path, "")
	defer none.Close()
	if _, err := none.Load(context.Background()); !errors.Is(err, ErrEncrypted) {
		t.Errorf("Expected ErrEncrypted, got %v", err)
	}
}

func TestPlainFileUpgradesToEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	if err := os.WriteFile(path, []byte(`[{"id":"1"}]`), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s, _ := NewFileStore(path, "secret")
	defer s.Close()
	data, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `[{"id":"1"}]` {
		t.Errorf("Expected plain data to load, got %s", data)
	}
}

func TestSealOpen(t *testing.T) {
	env, err := Seal([]byte("hello"), "pw")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	again, _ := Seal([]byte("hello"), "pw")
	if bytes.Equal(env.Salt, again.Salt) || bytes.Equal(env.Ciphertext, again.Ciphertext) {
		t.Error("Expected fresh salt and ciphertext on every seal")
	}

	out, err := Unseal(env, "pw")
	if err != nil || string(out) != "hello" {
		t.Errorf("Expected hello, got %q (%v)", out, err)
	}

	env.Ciphertext[0] ^= 0xff
	if _, err := Unseal(env, "pw"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("Expected tampering to be detected, got %v", err)
	}

	env.Version = 99
	if _, err := Unseal(env, "pw"); err == nil {
		t.Error("Expected unknown version to be rejected")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(config.ServerConfig{Backend: config.BackendFile, DataFile: filepath.Join(dir, "c.json")})
	if err != nil {
		t.Fatalf("Open file failed: %v", err)
	}
	if _, ok := b.(*FileStore); !ok {
		t.Errorf("Expected *FileStore, got %T", b)
	}
	b.Close()

	b, err = Open(config.ServerConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "c.db")})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	if _, ok := b.(*SQLiteStore); !ok {
		t.Errorf("Expected *SQLiteStore, got %T", b)
	}
	b.Close()

	if _, err := Open(config.ServerConfig{Backend: config.BackendSQLite, SQLitePath: "x.db", Passphrase: "pw"}); err == nil {
		t.Error("Expected encryption to be refused for sqlite")
	}
}

func TestSQLiteUpdatedAt(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if ts, err := s.UpdatedAt(ctx); err != nil || !ts.IsZero() {
		t.Errorf("Expected zero time before first save, got %v (%v)", ts, err)
	}
	s.Save(ctx, []byte(`[]`))
	if ts, err := s.UpdatedAt(ctx); err != nil || ts.IsZero() {
		t.Errorf("Expected a save time, got %v (%v)", ts, err)
	}
}
