// Package server runs the long-lived query daemon: JSON over HTTP for
// search, detail, and status, with the knowledge database reopened
// automatically when the ingestion pipeline rewrites it.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scryer-dev/scryer/pkg/config"
	"github.com/scryer-dev/scryer/pkg/embed"
	"github.com/scryer-dev/scryer/pkg/retrieval"
	"github.com/scryer-dev/scryer/pkg/store"
)

// Server is the scryer daemon.
type Server struct {
	cfg    config.Config
	logger *slog.Logger

	mu     sync.RWMutex
	store  *store.Store
	engine *retrieval.Engine

	watcher  *fsnotify.Watcher
	sessions retrieval.SessionCache
}

// New opens the knowledge database and builds a server ready to listen.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}

	cache, err := retrieval.NewBadgerSessionCache(cfg.SessionCachePath(), cfg.SessionTTL())
	if err != nil {
		logger.Warn("persistent session cache unavailable, sessions will not survive restarts",
			"error", err)
	} else {
		s.sessions = cache
	}

	if err := s.reopen(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// watch the directory: the pipeline replaces the db file atomically,
	// so the file's own watch would die on the first swap
	if err := watcher.Add(filepath.Dir(cfg.DBPath())); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch data dir: %w", err)
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

// reopen swaps in a fresh read-only store and engine.
func (s *Server) reopen() error {
	st, err := store.OpenReadOnly(s.cfg.DBPath(), s.cfg.Embeddings.Dims)
	if err != nil {
		return err
	}

	var persona *store.PersonaStore
	if p, err := store.OpenPersona(config.PersonaDBPath()); err == nil {
		persona = p
	} else {
		s.logger.Warn("persona database unavailable", "error", err)
	}

	embedder := embed.NewClient(s.cfg.Embeddings.Endpoint, s.cfg.Embeddings.Dims)

	opts := []retrieval.Option{retrieval.WithLogger(s.logger)}
	if s.sessions != nil {
		opts = append(opts, retrieval.WithSessionCache(s.sessions))
	}
	engine, err := retrieval.NewEngine(s.cfg, st, persona, embedder, opts...)
	if err != nil {
		_ = st.Close()
		return err
	}

	s.mu.Lock()
	old, oldStore := s.engine, s.store
	s.engine, s.store = engine, st
	s.mu.Unlock()

	if old != nil {
		// the daemon-level session cache outlives engine swaps
		if s.sessions == nil {
			_ = old.Close()
		}
		_ = oldStore.Close()
	}
	return nil
}

// watch reloads the engine when the ingestion pipeline rewrites the db.
// Events are debounced; sqlite WAL checkpoints fire several per rewrite.
func (s *Server) watch() {
	dbName := filepath.Base(s.cfg.DBPath())
	var timer *time.Timer

	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != dbName {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(500*time.Millisecond, func() {
				s.logger.Info("knowledge database changed, reopening")
				if err := s.reopen(); err != nil {
					s.logger.Error("reopen failed, keeping stale handle", "error", err)
				}
			})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /detail", s.handleDetail)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// ListenAndServe blocks serving the daemon API.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("daemon listening", "addr", addr)
	return srv.ListenAndServe()
}

// Close shuts down the watcher and engine.
func (s *Server) Close() error {
	_ = s.watcher.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		_ = s.engine.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	return nil
}

type searchRequest struct {
	Query         string `json:"query"`
	Limit         int    `json:"limit"`
	Mode          string `json:"mode"`
	Intent        string `json:"intent"`
	IncludeIssues bool   `json:"include_issues"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	resp, err := engine.Query(r.Context(), req.Query, retrieval.QueryOptions{
		Limit:         req.Limit,
		Mode:          retrieval.Mode(req.Mode),
		Intent:        req.Intent,
		IncludeIssues: req.IncludeIssues,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, retrieval.ErrNoOracles) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	queryID := r.URL.Query().Get("query_id")
	rank, err := strconv.Atoi(r.URL.Query().Get("rank"))
	if queryID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "query_id and numeric rank are required")
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	detail, err := engine.Detail(r.Context(), queryID, rank)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, retrieval.ErrUnknownQuery):
			status = http.StatusNotFound
		case errors.Is(err, retrieval.ErrRankOutOfRange):
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"doc_id":     detail.DocID,
		"event_type": detail.EventType,
		"content":    detail.Full,
		"file_path":  detail.FilePath,
		"reach":      detail.ReachFiles,
		"partners":   detail.Partners,
		"imports":    detail.Imports,
		"supports":   detail.Supports,
		"attacks":    detail.Attacks,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.store
	s.mu.RUnlock()

	stats, err := st.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
