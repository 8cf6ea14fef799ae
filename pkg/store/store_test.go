package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

func testVec(vals ...float32) []float32 {
	v := make([]float32, testDims)
	copy(v, vals)
	return v
}

// newFixture builds a small but fully-populated knowledge database.
func newFixture(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kb.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()

	seq, err := s.AppendEvent(ctx, "session.note", "sess-1", "2026-08-20T10:00:00Z",
		`{"content": "decided to keep the oracle timeout at two seconds"}`)
	require.NoError(t, err)
	require.NoError(t, s.InsertVector(ctx, SessionBase+seq, testVec(1, 0, 0)))

	fnID, err := s.InsertFunction(ctx, FunctionRow{
		File: "pkg/auth/login.go", Name: "Login",
		Signature: "func Login(ctx context.Context, user string) error",
		Doc:       "Login authenticates a user against the local database.\nSecond line.",
		StartLine: 12, EndLine: 48, IsPublic: true,
		Imports: []string{"context", "errors"},
	})
	require.NoError(t, err)
	require.NoError(t, s.InsertVector(ctx, CodeBase+fnID, testVec(0, 1, 0)))
	require.NoError(t, s.IndexDocument(ctx, "code:pkg/auth/login.go::Login", "code",
		"Login", "authenticates a user against the local database"))

	commitID, err := s.InsertCommit(ctx, "deadbeef12345678", "add login rate limiting", "sam", "2026-07-01T09:00:00Z", 3)
	require.NoError(t, err)
	require.NoError(t, s.InsertVector(ctx, CommitBase+commitID, testVec(0, 0, 1)))
	require.NoError(t, s.IndexDocument(ctx, "commit:deadbeef12345678", "commit",
		"add login rate limiting", "add login rate limiting"))

	beliefID, err := s.InsertBelief(ctx, BeliefRow{
		Slug: "wrap-errors", Statement: "errors crossing package boundaries get wrapped",
		Entrenchment: "settled", EvidenceCount: 4, EvidenceVerified: 4,
		Supports: []string{"single-error-path"}, FilePath: "pkg/store",
	}, "errors wrapping", "errors crossing package boundaries get wrapped with context", []string{"pkg/store/store.go", "pkg/retrieval/engine.go"})
	require.NoError(t, err)
	require.NoError(t, s.InsertVector(ctx, BeliefBase+beliefID, testVec(0.9, 0.1, 0)))

	_, err = s.InsertIssue(ctx, 42, "issue", "login flaky under load", "fails when...", "open")
	require.NoError(t, err)
	require.NoError(t, s.IndexDocument(ctx, "issue:42", "issue",
		"login flaky under load", "fails when the database is locked"))

	require.NoError(t, s.AddCoChange(ctx, "pkg/auth/login.go", "pkg/auth/session.go", 9))
	require.NoError(t, s.AddCoChange(ctx, "pkg/auth/login.go", "pkg/store/store.go", 4))

	return s
}

func TestResolveByOffsetRange(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	rec, err := s.Resolve(ctx, SessionBase+1)
	require.NoError(t, err)
	assert.Equal(t, "session:1", rec.DocID)
	assert.Contains(t, rec.Content, "oracle timeout")

	rec, err = s.Resolve(ctx, CodeBase+1)
	require.NoError(t, err)
	assert.Equal(t, "code:pkg/auth/login.go::Login", rec.DocID)
	assert.Contains(t, rec.Content, "Function `Login` in `pkg/auth/login.go`")
	assert.Contains(t, rec.Content, "public")

	rec, err = s.Resolve(ctx, CommitBase+1)
	require.NoError(t, err)
	assert.Equal(t, "commit:deadbeef12345678", rec.DocID)
	assert.Equal(t, "deadbee: add login rate limiting (sam)", rec.Content)

	rec, err = s.Resolve(ctx, BeliefBase+1)
	require.NoError(t, err)
	assert.Equal(t, "belief:wrap-errors", rec.DocID)
	assert.Equal(t, "errors crossing package boundaries get wrapped (settled, pkg/store) [evidence: 4/4]", rec.Content)

	rec, err = s.Resolve(ctx, ForgeBase+1)
	require.NoError(t, err)
	assert.Equal(t, "issue:42", rec.DocID)

	_, err = s.Resolve(ctx, CodeBase+999)
	assert.Error(t, err, "dangling id must error, not fabricate")
}

func TestVectorSearchNearestFirst(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	ids, dists, err := s.VectorSearch(ctx, testVec(0, 1, 0), 10)
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	assert.Equal(t, int64(CodeBase+1), ids[0], "exact match ranks first")
	assert.InDelta(t, 0.0, dists[0], 1e-5)

	for i := 1; i < len(dists); i++ {
		assert.GreaterOrEqual(t, dists[i], dists[i-1])
	}
}

func TestLexicalSearchExcludesIssuesByDefault(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	hits, err := s.LexicalSearch(ctx, MatchQuery("login flaky"), 10, false)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "issue", h.Kind)
	}

	hits, err = s.LexicalSearch(ctx, MatchQuery("login flaky"), 10, true)
	require.NoError(t, err)
	kinds := make(map[string]bool)
	for _, h := range hits {
		kinds[h.Kind] = true
		assert.Greater(t, h.BM25, 0.0, "scores are negated to higher-is-better")
	}
	assert.True(t, kinds["issue"])
}

func TestCoChangeNeighborsAggregates(t *testing.T) {
	s := newFixture(t)

	neighbors, err := s.CoChangeNeighbors(context.Background(), []string{"login"}, 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "pkg/auth/session.go", neighbors[0].File)
	assert.Equal(t, 9, neighbors[0].Count)
	assert.Equal(t, "pkg/store/store.go", neighbors[1].File)
}

func TestDetailBelief(t *testing.T) {
	s := newFixture(t)

	d, err := s.Detail(context.Background(), "belief:wrap-errors")
	require.NoError(t, err)
	assert.Contains(t, d.Full, "wrapped with context")
	assert.Equal(t, []string{"pkg/retrieval/engine.go", "pkg/store/store.go"}, d.ReachFiles)
	assert.Equal(t, []string{"single-error-path"}, d.Supports)
}

func TestDetailCode(t *testing.T) {
	s := newFixture(t)

	d, err := s.Detail(context.Background(), "code:pkg/auth/login.go::Login")
	require.NoError(t, err)
	assert.Contains(t, d.Full, "Lines 12-48")
	assert.Contains(t, d.Full, "authenticates a user")
	assert.Equal(t, []string{"context", "errors"}, d.Imports)
	require.NotEmpty(t, d.Partners)
	assert.Equal(t, "pkg/auth/session.go", d.Partners[0].File)
}

func TestDetailUnknownDocErrors(t *testing.T) {
	s := newFixture(t)

	_, err := s.Detail(context.Background(), "belief:no-such-slug")
	assert.Error(t, err)
	_, err = s.Detail(context.Background(), "commit:0000000")
	assert.Error(t, err)
}

func TestMatchQuery(t *testing.T) {
	assert.Equal(t, `"login" OR "rate" OR "limiting"`, MatchQuery("login rate limiting"))
	assert.Equal(t, `"ok"`, MatchQuery("a ok"))
	assert.Equal(t, "", MatchQuery(""))
	assert.Equal(t, "", MatchQuery("a b"))
}

func TestStats(t *testing.T) {
	s := newFixture(t)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Vectors)
	assert.Equal(t, int64(1), stats.Functions)
	assert.Equal(t, int64(1), stats.Beliefs)
	assert.Equal(t, int64(2), stats.CoChanges)
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"), testDims)
	assert.Error(t, err)
}

func TestInsertVectorValidation(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	err := s.InsertVector(ctx, IDLimit+5, testVec(1))
	assert.Error(t, err, "out-of-range global id")

	err = s.InsertVector(ctx, CodeBase+50, []float32{1, 2})
	assert.Error(t, err, "wrong dimensionality")
}
