// Package retrieval implements the multi-oracle query core: independent
// retrieval strategies fan out in parallel, their ranked lists are fused
// with weighted reciprocal rank fusion, and results come back as compact
// snippets that a follow-up detail fetch can expand.
package retrieval

import (
	"context"
	"errors"
)

var (
	// ErrNoOracles means not a single retrieval strategy could serve the
	// query. Individual oracle failures degrade silently; this fires only
	// when the set of available oracles is empty.
	ErrNoOracles = errors.New("no oracles available")

	// ErrUnknownQuery means a detail fetch referenced a query id that was
	// never issued or has expired from the session cache.
	ErrUnknownQuery = errors.New("unknown or expired query id")

	// ErrRankOutOfRange means a detail fetch asked for a rank the query's
	// result list does not contain.
	ErrRankOutOfRange = errors.New("rank out of range")
)

// Query is the per-request input shared by every oracle. The engine embeds
// the text once; oracles that need a vector read Embedding and must cope
// with it being nil when the embedding server is down.
type Query struct {
	Text          string
	Embedding     []float32
	IncludeIssues bool
}

// OracleResult is one ranked hit from a single oracle. Score is only
// comparable within the emitting oracle; fusion works on ranks, never on
// raw scores across oracles. ScoreKind names the scale for display.
type OracleResult struct {
	DocID     string
	Content   string
	Score     float64
	ScoreKind string
	FilePath  string
	Timestamp string
}

// Oracle is one retrieval strategy. Query returns results best-first;
// returning an error or an empty list drops the oracle from fusion for
// that query without failing it.
type Oracle interface {
	Name() string
	Available(ctx context.Context) bool
	Query(ctx context.Context, q Query, limit int) ([]OracleResult, error)
}
