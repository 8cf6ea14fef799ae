package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PersonaStore is the cross-project developer-profile database. It lives
// under the user's home directory rather than the repo, so observations
// accumulated in one project inform queries in another.
type PersonaStore struct {
	db   *sql.DB
	path string
}

// PersonaHit is one BM25 match from the persona database.
type PersonaHit struct {
	ID      int64
	Kind    string // preference, habit, decision
	Content string
	BM25    float64 // negated, higher is better
}

// OpenPersona opens the persona database, creating the schema if the file is
// new. A missing parent directory is created.
func OpenPersona(path string) (*PersonaStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create persona directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open persona database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS persona_fts USING fts5(
			kind UNINDEXED,
			content,
			project UNINDEXED
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init persona schema: %w", err)
	}

	return &PersonaStore{db: db, path: path}, nil
}

// Close releases the database handle.
func (p *PersonaStore) Close() error {
	return p.db.Close()
}

// Available reports whether the persona database holds any observations.
func (p *PersonaStore) Available(ctx context.Context) bool {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM persona_fts LIMIT 1)`).Scan(&exists)
	return err == nil && exists
}

// Search runs BM25 over persona observations.
func (p *PersonaStore) Search(ctx context.Context, match string, limit int) ([]PersonaHit, error) {
	if match == "" {
		return nil, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT rowid, kind, content, bm25(persona_fts)
		FROM persona_fts
		WHERE persona_fts MATCH ?
		ORDER BY bm25(persona_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("persona query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []PersonaHit
	for rows.Next() {
		var h PersonaHit
		var raw float64
		if err := rows.Scan(&h.ID, &h.Kind, &h.Content, &raw); err != nil {
			return nil, err
		}
		h.BM25 = -raw
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Observe records one observation. Kind should be one of preference, habit,
// or decision; project tags which repo it was learned in.
func (p *PersonaStore) Observe(ctx context.Context, kind, content, project string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO persona_fts (kind, content, project) VALUES (?, ?, ?)
	`, kind, content, project)
	if err != nil {
		return 0, fmt.Errorf("record observation: %w", err)
	}
	return res.LastInsertId()
}

// Detail resolves a persona doc id ("persona:<rowid>") to its full content.
func (p *PersonaStore) Detail(ctx context.Context, docID string) (*Detail, error) {
	key := strings.TrimPrefix(docID, "persona:")
	rowid, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed persona doc id %q", docID)
	}

	var kind, content, project string
	err = p.db.QueryRowContext(ctx, `
		SELECT kind, content, project FROM persona_fts WHERE rowid = ?
	`, rowid).Scan(&kind, &content, &project)
	if err != nil {
		return nil, fmt.Errorf("persona lookup failed for %s: %w", docID, err)
	}

	rec := Record{
		DocID:     docID,
		Type:      TypeSession,
		EventType: "persona." + kind,
		Content:   content,
	}
	full := content
	if project != "" {
		full = fmt.Sprintf("%s (observed in %s)", content, project)
	}
	return &Detail{Record: rec, Full: full}, nil
}
