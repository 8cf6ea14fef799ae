// Package scryer is a local-first knowledge retrieval engine for software
// repositories. An ingestion pipeline (separate tooling) distills a repo
// into sqlite: extracted functions, commit history, session events,
// patterns, and beliefs, all embedded into one shared vector index. This
// module is the query side: several retrieval oracles answer in parallel
// and their rankings are fused with weighted reciprocal rank fusion.
//
// The programmatic entry point is pkg/retrieval.Engine; the CLI lives in
// cmd/scryer.
package scryer

// Version is the current release.
const Version = "0.3.1"
