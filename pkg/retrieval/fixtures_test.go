package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scryer-dev/scryer/pkg/config"
	"github.com/scryer-dev/scryer/pkg/store"
)

const testDims = 4

func testCfg(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Embeddings.Dims = testDims
	return cfg
}

// newCorpus builds a store where code heavily outnumbers beliefs, the
// shape real repos have.
func newCorpus(t *testing.T, functions, beliefs int) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kb.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()

	// code vectors sit far from the canonical query vector [1,0,0,0]
	for i := 1; i <= functions; i++ {
		id, err := s.InsertFunction(ctx, store.FunctionRow{
			File: fmt.Sprintf("pkg/gen/f%03d.go", i),
			Name: fmt.Sprintf("Helper%03d", i),
		})
		require.NoError(t, err)
		require.NoError(t, s.InsertVector(ctx, store.CodeBase+id, []float32{0, 1, 0, 0}))
		require.NoError(t, s.IndexDocument(ctx,
			fmt.Sprintf("code:pkg/gen/f%03d.go::Helper%03d", i, i), "code",
			fmt.Sprintf("Helper%03d", i), "generated helper"))
	}

	// belief vectors sit close to the query vector
	for i := 1; i <= beliefs; i++ {
		slug := fmt.Sprintf("belief-%02d", i)
		id, err := s.InsertBelief(ctx, store.BeliefRow{
			Slug:         slug,
			Statement:    fmt.Sprintf("retry budgets belong in config, case %d", i),
			Entrenchment: "settled",
			FilePath:     "pkg/config",
		}, "retry config", "retry budgets belong in config", nil)
		require.NoError(t, err)
		require.NoError(t, s.InsertVector(ctx, store.BeliefBase+id,
			[]float32{1, float32(i) * 0.01, 0, 0}))
	}

	return s
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeOracle struct {
	name      string
	results   []OracleResult
	err       error
	available bool
}

func (f *fakeOracle) Name() string                       { return f.name }
func (f *fakeOracle) Available(ctx context.Context) bool { return f.available }
func (f *fakeOracle) Query(ctx context.Context, q Query, limit int) ([]OracleResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func hits(docs ...string) []OracleResult {
	out := make([]OracleResult, len(docs))
	for i, d := range docs {
		out[i] = OracleResult{DocID: d, Content: "content of " + d}
	}
	return out
}
