package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// ParseDocID splits a stable document id into its kind prefix and key.
// Ids without a recognized prefix are treated as bare file paths, which is
// what the temporal oracle emits for co-change neighbors.
func ParseDocID(docID string) (kind, key string) {
	idx := strings.Index(docID, ":")
	if idx <= 0 {
		return "file", docID
	}
	kind = docID[:idx]
	key = docID[idx+1:]
	switch kind {
	case "session", "code", "pattern", "commit", "belief", "issue", "pr":
		return kind, key
	}
	return "file", docID
}

// Detail resolves the full-content view for a stable document id, including
// the relationship data the snippet path omits.
func (s *Store) Detail(ctx context.Context, docID string) (*Detail, error) {
	kind, key := ParseDocID(docID)
	switch kind {
	case "belief":
		return s.beliefDetail(ctx, key)
	case "commit":
		return s.commitDetail(ctx, key)
	case "code":
		return s.codeDetail(ctx, key)
	case "session":
		return s.sessionDetail(ctx, key)
	case "pattern":
		return s.patternDetail(ctx, key)
	case "issue", "pr":
		return s.forgeDetail(ctx, kind, key)
	default:
		return s.fileDetail(ctx, key)
	}
}

func (s *Store) beliefDetail(ctx context.Context, slug string) (*Detail, error) {
	b, err := s.BeliefBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	full := b.Statement
	var content sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT content FROM belief_fts WHERE slug = ?`, slug).Scan(&content)
	if err == nil && content.String != "" {
		full = content.String
	}

	reach, err := s.BeliefReach(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &Detail{
		Record:     *beliefRecord(b),
		Full:       full,
		ReachFiles: reach,
		Supports:   b.Supports,
		Attacks:    b.Attacks,
	}, nil
}

func (s *Store) commitDetail(ctx context.Context, sha string) (*Detail, error) {
	var id int64
	var subject string
	var author, timestamp sql.NullString
	var filesChanged int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, author, timestamp, files_changed
		FROM commits WHERE sha = ?
	`, sha).Scan(&id, &subject, &author, &timestamp, &filesChanged)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed for %s: %w", sha, err)
	}

	rec, err := s.resolveCommit(ctx, id)
	if err != nil {
		return nil, err
	}

	full := rec.Content
	if filesChanged > 0 {
		full = fmt.Sprintf("%s, %d files changed", full, filesChanged)
	}

	return &Detail{Record: *rec, Full: full}, nil
}

func (s *Store) codeDetail(ctx context.Context, key string) (*Detail, error) {
	idx := strings.Index(key, "::")
	if idx < 0 {
		return nil, fmt.Errorf("malformed code doc id %q", key)
	}
	file, name := key[:idx], key[idx+2:]

	var id int64
	var signature, doc, imports sql.NullString
	var startLine, endLine int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, signature, doc, imports, start_line, end_line
		FROM functions WHERE file = ? AND name = ?
	`, file, name).Scan(&id, &signature, &doc, &imports, &startLine, &endLine)
	if err != nil {
		return nil, fmt.Errorf("function lookup failed for %s: %w", key, err)
	}

	rec, err := s.resolveFunction(ctx, id)
	if err != nil {
		return nil, err
	}

	var full strings.Builder
	full.WriteString(rec.Content)
	if startLine > 0 {
		fmt.Fprintf(&full, "\nLines %d-%d", startLine, endLine)
	}
	if doc.String != "" {
		full.WriteString("\n\n" + doc.String)
	}

	partners, err := s.CoChangeNeighbors(ctx, []string{file}, 10)
	if err != nil {
		return nil, err
	}

	return &Detail{
		Record:   *rec,
		Full:     full.String(),
		Partners: partners,
		Imports:  splitJSONList(imports.String),
	}, nil
}

func (s *Store) sessionDetail(ctx context.Context, key string) (*Detail, error) {
	seq, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed session doc id %q", key)
	}

	rec, err := s.resolveSession(ctx, seq)
	if err != nil {
		return nil, err
	}

	var data sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT data FROM eventlog WHERE seq = ?`, seq).Scan(&data); err != nil {
		return nil, err
	}

	full := rec.Content
	if data.String != "" {
		full = data.String
	}
	return &Detail{Record: *rec, Full: full}, nil
}

func (s *Store) patternDetail(ctx context.Context, slug string) (*Detail, error) {
	var id int64
	var content sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content FROM patterns WHERE slug = ?`, slug).Scan(&id, &content)
	if err != nil {
		return nil, fmt.Errorf("pattern lookup failed for %s: %w", slug, err)
	}

	rec, err := s.resolvePattern(ctx, id)
	if err != nil {
		return nil, err
	}

	full := rec.Content
	if content.String != "" {
		full = content.String
	}
	return &Detail{Record: *rec, Full: full}, nil
}

func (s *Store) forgeDetail(ctx context.Context, kind, key string) (*Detail, error) {
	number, err := strconv.Atoi(key)
	if err != nil {
		return nil, fmt.Errorf("malformed %s doc id %q", kind, key)
	}

	var id int64
	var body sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, body FROM issues WHERE number = ? AND kind = ?
	`, number, kind).Scan(&id, &body)
	if err != nil {
		return nil, fmt.Errorf("%s lookup failed for #%d: %w", kind, number, err)
	}

	rec, err := s.resolveForge(ctx, id)
	if err != nil {
		return nil, err
	}

	full := rec.Content
	if body.String != "" {
		full = rec.Content + "\n\n" + body.String
	}
	return &Detail{Record: *rec, Full: full}, nil
}

// fileDetail covers bare-path doc ids from the temporal oracle: the detail
// view is the file's co-change neighborhood.
func (s *Store) fileDetail(ctx context.Context, path string) (*Detail, error) {
	partners, err := s.CoChangeNeighbors(ctx, []string{path}, 10)
	if err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, fmt.Errorf("no co-change history for %s", path)
	}

	rec := Record{
		DocID:     path,
		Type:      TypeCommit,
		EventType: "git.co_change",
		Content:   fmt.Sprintf("Change neighborhood of %s", path),
		FilePath:  path,
	}
	return &Detail{Record: rec, Full: rec.Content, Partners: partners}, nil
}
