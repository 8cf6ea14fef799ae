package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 768, cfg.Embeddings.Dims)
	assert.Equal(t, 60, cfg.Retrieval.RRFK)
	assert.Equal(t, 8, cfg.Retrieval.OverFetch)
	assert.Equal(t, 50, cfg.Retrieval.BeliefOverFetch)
	assert.Equal(t, 2*time.Second, cfg.OracleTimeout())
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DataDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[embeddings]
dims = 384

[retrieval]
rrf_k = 30

[[repos]]
name = "sibling"
path = "/src/sibling"
`), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 384, cfg.Embeddings.Dims)
	assert.Equal(t, 30, cfg.Retrieval.RRFK)
	// unset fields fall back
	assert.Equal(t, 8, cfg.Retrieval.OverFetch)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)

	repo, ok := cfg.RepoByName("sibling")
	require.True(t, ok)
	assert.Equal(t, "/src/sibling", repo.Path)
	_, ok = cfg.RepoByName("absent")
	assert.False(t, ok)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCRYER_ENDPOINT", "http://embed.internal:9999")
	t.Setenv("SCRYER_DIMS", "1024")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://embed.internal:9999", cfg.Embeddings.Endpoint)
	assert.Equal(t, 1024, cfg.Embeddings.Dims)
}

func TestLoadMalformedFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DataDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("not [valid toml"), 0644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestDBPath(t *testing.T) {
	cfg := Default("/repo")
	assert.Equal(t, filepath.Join("/repo", ".scryer", "data", "scryer.db"), cfg.DBPath())
}

func TestSessionCachePath(t *testing.T) {
	cfg := Default("/repo")
	assert.Equal(t, filepath.Join("/repo", ".scryer", "data", "sessions"),
		cfg.SessionCachePath(), "default lives next to the knowledge db")

	cfg.Session.BadgerPath = "/var/cache/scryer-sessions"
	assert.Equal(t, "/var/cache/scryer-sessions", cfg.SessionCachePath())
}
