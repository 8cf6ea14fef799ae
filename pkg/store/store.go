// Package store reads the knowledge database the ingestion pipeline
// maintains: structured tables per content type, FTS5 tables for lexical
// search, and a single vec0 index shared by every type through the global
// offset scheme.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a read view over one repository's knowledge database.
type Store struct {
	db   *sql.DB
	dims int
	path string
}

// Open opens (creating if needed) a knowledge database in read-write mode.
// Query paths should prefer OpenReadOnly; this entry point exists for the
// ingestion tooling and for test fixtures.
func Open(path string, dims int) (*Store, error) {
	if err := CheckOffsets(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dims: dims, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing knowledge database for querying. The
// retrieval core never writes; the ingestion pipeline owns all mutation.
func OpenReadOnly(path string, dims int) (*Store, error) {
	if err := CheckOffsets(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("knowledge database missing at %s: %w", path, err)
	}

	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db, dims: dims, path: path}, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS eventlog (
			seq INTEGER PRIMARY KEY,
			event_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			data TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS functions (
			id INTEGER PRIMARY KEY,
			file TEXT NOT NULL,
			name TEXT NOT NULL,
			signature TEXT,
			doc TEXT,
			start_line INTEGER,
			end_line INTEGER,
			is_public INTEGER DEFAULT 0,
			imports TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file)`,
		`CREATE TABLE IF NOT EXISTS commits (
			id INTEGER PRIMARY KEY,
			sha TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL,
			author TEXT,
			timestamp TEXT,
			files_changed INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS patterns (
			id INTEGER PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			purpose TEXT,
			content TEXT,
			file_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS beliefs (
			id INTEGER PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			statement TEXT NOT NULL,
			entrenchment TEXT DEFAULT 'tentative',
			evidence_count INTEGER DEFAULT 0,
			evidence_verified INTEGER DEFAULT 0,
			supports TEXT,
			attacks TEXT,
			file_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS belief_reach (
			slug TEXT NOT NULL,
			file TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_belief_reach_slug ON belief_reach(slug)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id INTEGER PRIMARY KEY,
			number INTEGER NOT NULL,
			kind TEXT NOT NULL DEFAULT 'issue',
			title TEXT NOT NULL,
			body TEXT,
			state TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS co_changes (
			file_a TEXT NOT NULL,
			file_b TEXT NOT NULL,
			count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_co_changes_a ON co_changes(file_a)`,
		`CREATE INDEX IF NOT EXISTS idx_co_changes_b ON co_changes(file_b)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS corpus_fts USING fts5(
			doc_id UNINDEXED,
			kind UNINDEXED,
			title,
			body
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS belief_fts USING fts5(
			slug UNINDEXED,
			statement,
			facets,
			content
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(
			embedding float[%d] distance_metric=cosine
		)`, s.dims),
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dims returns the vector dimensionality the store was opened with.
func (s *Store) Dims() int {
	return s.dims
}

// VectorSearch runs KNN over the shared vec0 index and returns raw global
// ids with cosine distances, best first. Callers over-fetch and post-filter
// by offset range themselves.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, k int) ([]int64, []float64, error) {
	if k <= 0 {
		return nil, nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("serialize query vector: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM vec_index
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, nil, fmt.Errorf("KNN search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	var dists []float64
	for rows.Next() {
		var id int64
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		dists = append(dists, dist)
	}
	return ids, dists, rows.Err()
}

// VectorCount returns the number of vectors in the shared index.
func (s *Store) VectorCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_index`).Scan(&n)
	return n, err
}

// HasVectors reports whether the vec0 index exists and is nonempty.
func (s *Store) HasVectors(ctx context.Context) bool {
	n, err := s.VectorCount(ctx)
	return err == nil && n > 0
}

// HasTable reports whether a table or virtual table exists.
func (s *Store) HasTable(ctx context.Context, name string) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&one)
	return err == nil
}

// HasRows reports whether a table exists and has at least one row.
func (s *Store) HasRows(ctx context.Context, name string) bool {
	if !s.HasTable(ctx, name) {
		return false
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s LIMIT 1)`, name)).Scan(&exists)
	return err == nil && exists
}

// Resolve maps a raw vector-index id to its enriched record by offset range.
func (s *Store) Resolve(ctx context.Context, id int64) (*Record, error) {
	typ, err := TypeOfID(id)
	if err != nil {
		return nil, err
	}
	rowid, _ := RowIDOf(id)

	switch typ {
	case TypeSession:
		return s.resolveSession(ctx, rowid)
	case TypeCode:
		return s.resolveFunction(ctx, rowid)
	case TypePattern:
		return s.resolvePattern(ctx, rowid)
	case TypeCommit:
		return s.resolveCommit(ctx, rowid)
	case TypeBelief:
		row, err := s.BeliefByRowID(ctx, rowid)
		if err != nil {
			return nil, err
		}
		return beliefRecord(row), nil
	default:
		return s.resolveForge(ctx, rowid)
	}
}

func (s *Store) resolveSession(ctx context.Context, seq int64) (*Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx, `
		SELECT event_type, timestamp,
		       COALESCE(json_extract(data, '$.content'), '')
		FROM eventlog WHERE seq = ?
	`, seq).Scan(&r.EventType, &r.Timestamp, &r.Content)
	if err != nil {
		return nil, fmt.Errorf("eventlog lookup failed for seq %d: %w", seq, err)
	}
	r.DocID = fmt.Sprintf("session:%d", seq)
	r.Type = TypeSession
	return &r, nil
}

func (s *Store) resolveFunction(ctx context.Context, rowid int64) (*Record, error) {
	var file, name string
	var signature, doc sql.NullString
	var isPublic bool
	err := s.db.QueryRowContext(ctx, `
		SELECT file, name, signature, doc, is_public
		FROM functions WHERE id = ?
	`, rowid).Scan(&file, &name, &signature, &doc, &isPublic)
	if err != nil {
		return nil, fmt.Errorf("function lookup failed for rowid %d: %w", rowid, err)
	}

	desc := fmt.Sprintf("Function `%s` in `%s`", name, file)
	if isPublic {
		desc += ", public"
	}
	if signature.String != "" {
		desc += ", " + signature.String
	}
	if first := firstLine(doc.String); first != "" {
		desc += " — " + first
	}

	return &Record{
		DocID:     fmt.Sprintf("code:%s::%s", file, name),
		Type:      TypeCode,
		EventType: "code.function",
		Content:   desc,
		FilePath:  file,
	}, nil
}

func (s *Store) resolvePattern(ctx context.Context, rowid int64) (*Record, error) {
	var slug, title string
	var purpose, filePath sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT slug, title, purpose, file_path FROM patterns WHERE id = ?
	`, rowid).Scan(&slug, &title, &purpose, &filePath)
	if err != nil {
		return nil, fmt.Errorf("pattern lookup failed for rowid %d: %w", rowid, err)
	}

	desc := title
	if purpose.String != "" {
		desc = fmt.Sprintf("%s: %s", title, purpose.String)
	}
	if filePath.String != "" {
		desc = fmt.Sprintf("%s (%s)", desc, filePath.String)
	}

	return &Record{
		DocID:     "pattern:" + slug,
		Type:      TypePattern,
		EventType: "pattern.surface",
		Content:   desc,
		FilePath:  filePath.String,
	}, nil
}

func (s *Store) resolveCommit(ctx context.Context, rowid int64) (*Record, error) {
	var sha, subject string
	var author, timestamp sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT sha, subject, author, timestamp FROM commits WHERE id = ?
	`, rowid).Scan(&sha, &subject, &author, &timestamp)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed for rowid %d: %w", rowid, err)
	}

	short := sha
	if len(short) > 7 {
		short = short[:7]
	}
	desc := fmt.Sprintf("%s: %s", short, subject)
	if author.String != "" {
		desc = fmt.Sprintf("%s (%s)", desc, author.String)
	}

	return &Record{
		DocID:     "commit:" + sha,
		Type:      TypeCommit,
		EventType: "git.commit",
		Content:   desc,
		Timestamp: timestamp.String,
	}, nil
}

func (s *Store) resolveForge(ctx context.Context, rowid int64) (*Record, error) {
	var number int
	var kind, title string
	var state sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT number, kind, title, state FROM issues WHERE id = ?
	`, rowid).Scan(&number, &kind, &title, &state)
	if err != nil {
		return nil, fmt.Errorf("issue lookup failed for rowid %d: %w", rowid, err)
	}

	typ := TypeForgeIssue
	if kind == "pr" {
		typ = TypeForgePR
	}
	desc := fmt.Sprintf("#%d %s", number, title)
	if state.String != "" {
		desc = fmt.Sprintf("%s [%s]", desc, state.String)
	}

	return &Record{
		DocID:     fmt.Sprintf("%s:%d", kind, number),
		Type:      typ,
		EventType: "forge." + kind,
		Content:   desc,
	}, nil
}

func beliefRecord(b *BeliefRow) *Record {
	return &Record{
		DocID:     "belief:" + b.Slug,
		Type:      TypeBelief,
		EventType: "belief.surface",
		Content:   FormatBelief(b),
		FilePath:  b.FilePath,
	}
}

// FormatBelief renders the compact one-line belief description.
func FormatBelief(b *BeliefRow) string {
	return fmt.Sprintf("%s (%s, %s) [evidence: %d/%d]",
		b.Statement, b.Entrenchment, b.FilePath, b.EvidenceCount, b.EvidenceVerified)
}

// LexicalSearch runs BM25 over the corpus FTS table. The returned scores are
// negated from sqlite's bm25() so that higher is better.
func (s *Store) LexicalSearch(ctx context.Context, match string, limit int, includeIssues bool) ([]LexicalHit, error) {
	if match == "" {
		return nil, nil
	}

	query := `
		SELECT doc_id, kind, title, bm25(corpus_fts)
		FROM corpus_fts
		WHERE corpus_fts MATCH ?`
	if !includeIssues {
		query += ` AND kind NOT IN ('issue', 'pr')`
	}
	query += `
		ORDER BY bm25(corpus_fts)
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, match, limit)
	if err != nil {
		return nil, fmt.Errorf("BM25 query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var raw float64
		if err := rows.Scan(&h.DocID, &h.Kind, &h.Title, &raw); err != nil {
			return nil, err
		}
		h.BM25 = -raw
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// CoChangeNeighbors aggregates co-change partners for files matching any of
// the given LIKE terms, summing counts across both columns of the pair table.
func (s *Store) CoChangeNeighbors(ctx context.Context, terms []string, perTermLimit int) ([]CoChangeNeighbor, error) {
	counts := make(map[string]int)
	related := make(map[string][]string)

	for _, term := range terms {
		pattern := "%" + strings.ToLower(term) + "%"
		for _, q := range []string{
			`SELECT file_b, count, file_a FROM co_changes
			 WHERE LOWER(file_a) LIKE ? ORDER BY count DESC LIMIT ?`,
			`SELECT file_a, count, file_b FROM co_changes
			 WHERE LOWER(file_b) LIKE ? ORDER BY count DESC LIMIT ?`,
		} {
			rows, err := s.db.QueryContext(ctx, q, pattern, perTermLimit)
			if err != nil {
				return nil, fmt.Errorf("co-change query failed: %w", err)
			}
			for rows.Next() {
				var neighbor, source string
				var count int
				if err := rows.Scan(&neighbor, &count, &source); err != nil {
					_ = rows.Close()
					return nil, err
				}
				counts[neighbor] += count
				related[neighbor] = append(related[neighbor], source)
			}
			if err := rows.Err(); err != nil {
				_ = rows.Close()
				return nil, err
			}
			_ = rows.Close()
		}
	}

	neighbors := make([]CoChangeNeighbor, 0, len(counts))
	for file, count := range counts {
		neighbors = append(neighbors, CoChangeNeighbor{
			File:      file,
			Count:     count,
			RelatedTo: related[file],
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Count != neighbors[j].Count {
			return neighbors[i].Count > neighbors[j].Count
		}
		return neighbors[i].File < neighbors[j].File
	})
	return neighbors, nil
}

// BeliefFTSHit is one BM25 match from the belief FTS table.
type BeliefFTSHit struct {
	Slug      string
	Statement string
	BM25      float64 // negated, higher is better
}

// BeliefFTS runs BM25 over the belief-specific FTS table.
func (s *Store) BeliefFTS(ctx context.Context, match string, limit int) ([]BeliefFTSHit, error) {
	if match == "" || !s.HasTable(ctx, "belief_fts") {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, statement, bm25(belief_fts)
		FROM belief_fts
		WHERE belief_fts MATCH ?
		ORDER BY bm25(belief_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("belief FTS query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []BeliefFTSHit
	for rows.Next() {
		var h BeliefFTSHit
		var raw float64
		if err := rows.Scan(&h.Slug, &h.Statement, &raw); err != nil {
			return nil, err
		}
		h.BM25 = -raw
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// BeliefByRowID fetches a belief row by its table rowid.
func (s *Store) BeliefByRowID(ctx context.Context, rowid int64) (*BeliefRow, error) {
	return s.beliefRow(ctx, `WHERE id = ?`, rowid)
}

// BeliefBySlug fetches a belief row by slug.
func (s *Store) BeliefBySlug(ctx context.Context, slug string) (*BeliefRow, error) {
	return s.beliefRow(ctx, `WHERE slug = ?`, slug)
}

func (s *Store) beliefRow(ctx context.Context, where string, arg interface{}) (*BeliefRow, error) {
	var b BeliefRow
	var supports, attacks, filePath sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT slug, statement, entrenchment, evidence_count, evidence_verified,
		       supports, attacks, file_path
		FROM beliefs `+where, arg).Scan(
		&b.Slug, &b.Statement, &b.Entrenchment, &b.EvidenceCount,
		&b.EvidenceVerified, &supports, &attacks, &filePath)
	if err != nil {
		return nil, fmt.Errorf("belief lookup failed: %w", err)
	}
	b.Supports = splitJSONList(supports.String)
	b.Attacks = splitJSONList(attacks.String)
	b.FilePath = filePath.String
	return &b, nil
}

// BeliefReach returns the files a belief is considered to apply to.
func (s *Store) BeliefReach(ctx context.Context, slug string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file FROM belief_reach WHERE slug = ? ORDER BY file`, slug)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Stats collects index statistics for the status command.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Dims: s.dims}

	counts := []struct {
		table string
		dst   *int64
	}{
		{"vec_index", &st.Vectors},
		{"eventlog", &st.Sessions},
		{"functions", &st.Functions},
		{"patterns", &st.Patterns},
		{"commits", &st.Commits},
		{"beliefs", &st.Beliefs},
		{"issues", &st.Issues},
		{"co_changes", &st.CoChanges},
	}
	for _, c := range counts {
		if !s.HasTable(ctx, c.table) {
			continue
		}
		if err := s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	if fi, err := os.Stat(s.path); err == nil {
		st.SizeBytes = fi.Size()
	}
	return st, nil
}

// MatchQuery builds an FTS5 MATCH expression from free text: quoted terms
// joined with OR, single-character terms dropped.
func MatchQuery(query string) string {
	var terms []string
	for _, t := range strings.Fields(query) {
		t = strings.Trim(t, `"'`)
		if len(t) > 1 {
			terms = append(terms, `"`+t+`"`)
		}
	}
	return strings.Join(terms, " OR ")
}

// firstLine returns the first nonempty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// splitJSONList parses a JSON string array column, tolerating empty values.
func splitJSONList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
