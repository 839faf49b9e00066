// Package audit keeps a journal of snapshot replacements on the data server.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"rhystmorgan/mira/internal/models"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = time.Minute
)

// Journal appends entries to a JSON-lines file in batches.
type Journal struct {
	path          string
	batchSize     int
	flushInterval time.Duration

	mu         sync.Mutex
	pending    []Entry
	flushTimer *time.Timer
	writeMu    sync.Mutex
}

// NewJournal opens the journal at path. Pending entries are written when
// the batch fills up, on a timer, and on Close.
func NewJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		path:          path,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		pending:       make([]Entry, 0, defaultBatchSize),
	}
	j.flushTimer = time.AfterFunc(j.flushInterval, func() {
		_ = j.Flush()
	})
	return j, nil
}

// Diff compares two snapshots by id.
func Diff(before, after []models.Fields) Entry {
	old := index(before)
	current := index(after)

	entry := Entry{Count: len(after)}
	for id, fields := range current {
		prev, ok := old[id]
		switch {
		case !ok:
			entry.Added = append(entry.Added, id)
		case !reflect.DeepEqual(prev, fields):
			entry.Changed = append(entry.Changed, id)
		}
	}
	for id := range old {
		if _, ok := current[id]; !ok {
			entry.Removed = append(entry.Removed, id)
		}
	}

	slices.Sort(entry.Added)
	slices.Sort(entry.Removed)
	slices.Sort(entry.Changed)
	return entry
}

func index(records []models.Fields) map[string]models.Fields {
	out := make(map[string]models.Fields, len(records))
	for _, r := range records {
		if id, ok := r[models.IDKey].(string); ok {
			out[id] = r
		}
	}
	return out
}

// Record stamps and queues an entry.
func (j *Journal) Record(entry Entry) error {
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now().UTC()

	j.mu.Lock()
	j.pending = append(j.pending, entry)
	full := len(j.pending) >= j.batchSize
	j.mu.Unlock()

	if full {
		return j.Flush()
	}
	return nil
}

// Flush writes all pending entries.
func (j *Journal) Flush() error {
	j.mu.Lock()
	if len(j.pending) == 0 {
		j.mu.Unlock()
		return nil
	}
	if j.flushTimer != nil {
		j.flushTimer.Reset(j.flushInterval)
	}
	batch := make([]Entry, len(j.pending))
	copy(batch, j.pending)
	j.pending = j.pending[:0]
	j.mu.Unlock()

	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	file, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	for _, entry := range batch {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal journal entry: %w", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write journal entry: %w", err)
		}
	}
	return nil
}

// History returns up to limit of the most recent entries, oldest first.
// A limit of zero or less returns everything.
func (j *Journal) History(limit int) ([]Entry, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}

	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	decoder := json.NewDecoder(file)
	for {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			break
		}
		entries = append(entries, entry)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (j *Journal) Close() error {
	if j.flushTimer != nil {
		j.flushTimer.Stop()
	}
	return j.Flush()
}
