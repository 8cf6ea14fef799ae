// Package config loads the per-project scryer configuration.
//
// The config file lives at .scryer/config.toml next to the data directory
// the ingestion pipeline writes. Everything has a default; a missing file is
// not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DataDir is the project-relative directory owned by the ingestion pipeline.
	DataDir = ".scryer"

	defaultDims      = 768
	defaultEndpoint  = "http://localhost:8080"
	defaultRRFK      = 60
	defaultOverFetch = 8
	// Beliefs are a tiny slice of the shared index; small over-fetch factors
	// starve them out entirely.
	defaultBeliefOverFetch = 50
)

// Embeddings configures the query-time embedding endpoint. The same model and
// dimensionality must match what the ingestion pipeline used; a mismatch is an
// operational error the engine cannot detect numerically.
type Embeddings struct {
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
	Dims     int    `toml:"dims"`
}

// Retrieval holds fusion and fan-out tuning knobs.
type Retrieval struct {
	RRFK            int `toml:"rrf_k"`
	OverFetch       int `toml:"over_fetch"`
	BeliefOverFetch int `toml:"belief_over_fetch"`
	OracleTimeoutMS int `toml:"oracle_timeout_ms"`
	QueryTimeoutMS  int `toml:"query_timeout_ms"`
}

// Session configures the query-session correlation cache.
type Session struct {
	CacheSize  int    `toml:"cache_size"`
	TTLMinutes int    `toml:"ttl_minutes"`
	BadgerPath string `toml:"badger_path"` // nonempty switches the daemon to a persistent cache
}

// Repo is one related repository in the federation registry.
type Repo struct {
	Name string `toml:"name"`
	Path string `toml:"path"` // path to that repo's .scryer data dir
}

// Config is the root configuration.
type Config struct {
	Embeddings Embeddings `toml:"embeddings"`
	Retrieval  Retrieval  `toml:"retrieval"`
	Session    Session    `toml:"session"`
	Repos      []Repo     `toml:"repos"`

	// Root is the project directory the config was loaded from.
	Root string `toml:"-"`
}

// Default returns the configuration used when no file is present.
func Default(root string) Config {
	return Config{
		Embeddings: Embeddings{
			Endpoint: defaultEndpoint,
			Model:    "nomic-embed-text",
			Dims:     defaultDims,
		},
		Retrieval: Retrieval{
			RRFK:            defaultRRFK,
			OverFetch:       defaultOverFetch,
			BeliefOverFetch: defaultBeliefOverFetch,
			OracleTimeoutMS: 2000,
			QueryTimeoutMS:  10000,
		},
		Session: Session{
			CacheSize:  256,
			TTLMinutes: 30,
		},
		Root: root,
	}
}

// Load reads .scryer/config.toml under root, applying defaults for anything
// unset and environment overrides (SCRYER_ENDPOINT, SCRYER_DIMS) on top.
func Load(root string) (Config, error) {
	cfg := Default(root)

	path := filepath.Join(root, DataDir, "config.toml")
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// no file: defaults + env
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Root = root
		applyDefaults(&cfg)
	}

	if v := os.Getenv("SCRYER_ENDPOINT"); v != "" {
		cfg.Embeddings.Endpoint = v
	}
	if v := os.Getenv("SCRYER_DIMS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			cfg.Embeddings.Dims = d
		}
	}

	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := Default(cfg.Root)
	if cfg.Embeddings.Endpoint == "" {
		cfg.Embeddings.Endpoint = def.Embeddings.Endpoint
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = def.Embeddings.Model
	}
	if cfg.Embeddings.Dims <= 0 {
		cfg.Embeddings.Dims = def.Embeddings.Dims
	}
	if cfg.Retrieval.RRFK <= 0 {
		cfg.Retrieval.RRFK = def.Retrieval.RRFK
	}
	if cfg.Retrieval.OverFetch <= 0 {
		cfg.Retrieval.OverFetch = def.Retrieval.OverFetch
	}
	if cfg.Retrieval.BeliefOverFetch <= 0 {
		cfg.Retrieval.BeliefOverFetch = def.Retrieval.BeliefOverFetch
	}
	if cfg.Retrieval.OracleTimeoutMS <= 0 {
		cfg.Retrieval.OracleTimeoutMS = def.Retrieval.OracleTimeoutMS
	}
	if cfg.Retrieval.QueryTimeoutMS <= 0 {
		cfg.Retrieval.QueryTimeoutMS = def.Retrieval.QueryTimeoutMS
	}
	if cfg.Session.CacheSize <= 0 {
		cfg.Session.CacheSize = def.Session.CacheSize
	}
	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = def.Session.TTLMinutes
	}
}

// DBPath returns the path of the repo's knowledge database.
func (c Config) DBPath() string {
	return filepath.Join(c.Root, DataDir, "data", "scryer.db")
}

// OracleTimeout returns the per-oracle soft deadline.
func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.Retrieval.OracleTimeoutMS) * time.Millisecond
}

// QueryTimeout returns the query-level wall-clock ceiling.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.Retrieval.QueryTimeoutMS) * time.Millisecond
}

// SessionTTL returns the correlation-cache entry lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SessionCachePath returns where query sessions persist between process
// invocations. Sessions must outlive the one-shot CLI process or the
// detail command could never resolve a query id.
func (c Config) SessionCachePath() string {
	if c.Session.BadgerPath != "" {
		return c.Session.BadgerPath
	}
	return filepath.Join(c.Root, DataDir, "data", "sessions")
}

// RepoByName looks up a related repository from the registry.
func (c Config) RepoByName(name string) (Repo, bool) {
	for _, r := range c.Repos {
		if r.Name == name {
			return r, true
		}
	}
	return Repo{}, false
}

// PersonaDBPath returns the cross-project persona database location.
func PersonaDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", DataDir, "persona", "persona.db")
	}
	return filepath.Join(home, DataDir, "persona", "persona.db")
}
