package store

import (
	"context"
	"encoding/json"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// The write side belongs to the ingestion pipeline; the retrieval core only
// ever opens the database read-only. It lives here so the schema and the
// offset scheme have a single owner.

// AppendEvent appends a session event and returns its sequence number.
func (s *Store) AppendEvent(ctx context.Context, eventType, sourceID, timestamp, dataJSON string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO eventlog (event_type, source_id, timestamp, data)
		VALUES (?, ?, ?, ?)
	`, eventType, sourceID, timestamp, dataJSON)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return res.LastInsertId()
}

// FunctionRow carries one extracted function for insertion.
type FunctionRow struct {
	File      string
	Name      string
	Signature string
	Doc       string
	StartLine int
	EndLine   int
	IsPublic  bool
	Imports   []string
}

// InsertFunction stores an extracted function and returns its rowid.
func (s *Store) InsertFunction(ctx context.Context, fn FunctionRow) (int64, error) {
	imports, _ := json.Marshal(fn.Imports)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO functions (file, name, signature, doc, start_line, end_line, is_public, imports)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fn.File, fn.Name, fn.Signature, fn.Doc, fn.StartLine, fn.EndLine, fn.IsPublic, string(imports))
	if err != nil {
		return 0, fmt.Errorf("insert function: %w", err)
	}
	return res.LastInsertId()
}

// InsertCommit stores a commit and returns its rowid.
func (s *Store) InsertCommit(ctx context.Context, sha, subject, author, timestamp string, filesChanged int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO commits (sha, subject, author, timestamp, files_changed)
		VALUES (?, ?, ?, ?, ?)
	`, sha, subject, author, timestamp, filesChanged)
	if err != nil {
		return 0, fmt.Errorf("insert commit: %w", err)
	}
	return res.LastInsertId()
}

// InsertPattern stores a distilled pattern and returns its rowid.
func (s *Store) InsertPattern(ctx context.Context, slug, title, purpose, content, filePath string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (slug, title, purpose, content, file_path)
		VALUES (?, ?, ?, ?, ?)
	`, slug, title, purpose, content, filePath)
	if err != nil {
		return 0, fmt.Errorf("insert pattern: %w", err)
	}
	return res.LastInsertId()
}

// InsertBelief stores a belief row, its FTS entry, and its reach set.
// Returns the beliefs rowid.
func (s *Store) InsertBelief(ctx context.Context, b BeliefRow, facets, content string, reach []string) (int64, error) {
	supports, _ := json.Marshal(b.Supports)
	attacks, _ := json.Marshal(b.Attacks)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO beliefs (slug, statement, entrenchment, evidence_count, evidence_verified, supports, attacks, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.Slug, b.Statement, b.Entrenchment, b.EvidenceCount, b.EvidenceVerified,
		string(supports), string(attacks), b.FilePath)
	if err != nil {
		return 0, fmt.Errorf("insert belief: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO belief_fts (slug, statement, facets, content)
		VALUES (?, ?, ?, ?)
	`, b.Slug, b.Statement, facets, content); err != nil {
		return 0, fmt.Errorf("index belief: %w", err)
	}

	for _, file := range reach {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO belief_reach (slug, file) VALUES (?, ?)`, b.Slug, file); err != nil {
			return 0, fmt.Errorf("insert belief reach: %w", err)
		}
	}
	return id, nil
}

// InsertIssue stores a forge issue or PR (kind "issue" or "pr") and returns
// its rowid.
func (s *Store) InsertIssue(ctx context.Context, number int, kind, title, body, state string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (number, kind, title, body, state)
		VALUES (?, ?, ?, ?, ?)
	`, number, kind, title, body, state)
	if err != nil {
		return 0, fmt.Errorf("insert issue: %w", err)
	}
	return res.LastInsertId()
}

// AddCoChange records one co-change pair observation.
func (s *Store) AddCoChange(ctx context.Context, fileA, fileB string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO co_changes (file_a, file_b, count) VALUES (?, ?, ?)
	`, fileA, fileB, count)
	if err != nil {
		return fmt.Errorf("insert co-change: %w", err)
	}
	return nil
}

// IndexDocument adds a lexical-search entry for a stable document id.
func (s *Store) IndexDocument(ctx context.Context, docID, kind, title, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corpus_fts (doc_id, kind, title, body) VALUES (?, ?, ?, ?)
	`, docID, kind, title, body)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return nil
}

// InsertVector stores an embedding at a global id. The id must already carry
// its type's offset; out-of-range ids are rejected rather than silently
// misfiled.
func (s *Store) InsertVector(ctx context.Context, globalID int64, embedding []float32) error {
	if _, err := TypeOfID(globalID); err != nil {
		return err
	}
	if len(embedding) != s.dims {
		return fmt.Errorf("embedding has %d dims, index expects %d", len(embedding), s.dims)
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vec_index (rowid, embedding) VALUES (?, ?)
	`, globalID, blob)
	if err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return nil
}
