package store

// Record is the enriched, one-line view of a corpus entry, resolved from a
// raw vector-index id or an FTS hit. Content is already human-readable; the
// snippet layer may truncate it further.
type Record struct {
	DocID     string
	Type      ContentType
	EventType string // fine-grained tag, e.g. code.function, git.commit, belief.surface
	Content   string
	FilePath  string
	Timestamp string
}

// LexicalHit is one BM25 match from the corpus FTS table.
type LexicalHit struct {
	DocID string
	Kind  string
	Title string
	// BM25 is negated from sqlite's bm25() so higher means better.
	BM25 float64
}

// CoChangeNeighbor is a file ranked by how often it changed together with
// files matching the query.
type CoChangeNeighbor struct {
	File      string
	Count     int
	RelatedTo []string
}

// BeliefRow mirrors one row of the beliefs table.
type BeliefRow struct {
	Slug             string
	Statement        string
	Entrenchment     string
	EvidenceCount    int
	EvidenceVerified int
	Supports         []string
	Attacks          []string
	FilePath         string
}

// Detail is the full-content view returned by the detail-fetch path,
// including relationship data the snippet path omits.
type Detail struct {
	Record
	Full       string
	ReachFiles []string           // beliefs: files the belief applies to
	Partners   []CoChangeNeighbor // code: co-change partners of the file
	Imports    []string           // code: import list
	Supports   []string           // beliefs
	Attacks    []string           // beliefs
}

// Stats summarizes the index for the status command.
type Stats struct {
	Dims      int
	Vectors   int64
	Sessions  int64
	Functions int64
	Patterns  int64
	Commits   int64
	Beliefs   int64
	Issues    int64
	CoChanges int64
	SizeBytes int64
}
