// Package server serves the contact collection over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"rhystmorgan/mira/internal/audit"
	"rhystmorgan/mira/internal/storage"
	"rhystmorgan/mira/internal/validation"
)

const (
	DataPath    = "/data"
	JournalPath = "/journal"

	maxSnapshotSize = 32 << 20
)

type Config struct {
	Backend storage.Backend
	// Journal is optional.
	Journal *audit.Journal
	Logger  *slog.Logger

	// CacheTTL defaults to DefaultCacheTTL; negative disables caching.
	CacheTTL time.Duration
}

// Server holds one collection. A POST replaces it wholesale; the last write
// wins.
type Server struct {
	backend storage.Backend
	journal *audit.Journal
	cache   *snapshotCache
	log     *slog.Logger
	mu      sync.Mutex
}

func New(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, errors.New("server: missing backend")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Server{
		backend: cfg.Backend,
		journal: cfg.Journal,
		cache:   newSnapshotCache(cfg.CacheTTL),
		log:     cfg.Logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(DataPath, s.handleData)
	mux.HandleFunc("GET "+JournalPath, s.handleJournal)
	return withHeaders(mux)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) load(ctx context.Context) ([]byte, error) {
	if data, ok := s.cache.Get(); ok {
		return data, nil
	}
	data, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(data)
	return data, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	data, err := s.load(r.Context())
	if err != nil {
		s.log.Error("failed to load snapshot", "error", err)
		http.Error(w, "failed to load contacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

type errorBody struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "snapshot too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read body"})
		return
	}

	records, result := validation.ValidateSnapshot(body)
	if !result.IsValid {
		s.log.Warn("rejected snapshot", "remote", r.RemoteAddr, "errors", len(result.Errors))
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:    "invalid snapshot",
			Messages: result.Messages(),
		})
		return
	}
	for _, warning := range result.Warnings {
		s.log.Debug("snapshot warning", "issue", warning.String(), "severity", warning.Severity.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entry audit.Entry
	if s.journal != nil {
		previous, err := s.load(r.Context())
		if err != nil {
			s.log.Warn("failed to load previous snapshot for journal", "error", err)
		}
		before, _ := validation.ValidateSnapshot(previous)
		entry = audit.Diff(before, records)
	}

	if err := s.backend.Save(r.Context(), body); err != nil {
		s.cache.Invalidate()
		s.log.Error("failed to save snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to save contacts"})
		return
	}
	s.cache.Set(body)
	s.log.Info("snapshot replaced", "count", len(records), "remote", r.RemoteAddr)

	if s.journal != nil && !entry.Empty() {
		entry.Remote = remoteHost(r.RemoteAddr)
		if err := s.journal.Record(entry); err != nil {
			s.log.Warn("failed to record journal entry", "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.NotFound(w, r)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	entries, err := s.journal.History(limit)
	if err != nil {
		s.log.Error("failed to read journal", "error", err)
		http.Error(w, "failed to read journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func remoteHost(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
