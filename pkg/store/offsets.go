package store

import "fmt"

// The shared vector index is one flat id space partitioned into contiguous
// per-type ranges. A raw vec_index rowid maps to exactly one content type by
// range membership; subtracting the range base yields the structured-store
// rowid. Ranges must never overlap (see TestOffsetRangesDisjoint).
const (
	SessionBase = 0
	CodeBase    = 1_000_000_000
	PatternBase = 2_000_000_000
	CommitBase  = 3_000_000_000
	BeliefBase  = 4_000_000_000
	ForgeBase   = 5_000_000_000
	IDLimit     = 6_000_000_000
)

// ContentType identifies which logical corpus a record belongs to.
type ContentType int

const (
	TypeSession ContentType = iota
	TypeCode
	TypePattern
	TypeCommit
	TypeBelief
	TypeForgeIssue
	TypeForgePR
)

func (t ContentType) String() string {
	switch t {
	case TypeSession:
		return "session"
	case TypeCode:
		return "code"
	case TypePattern:
		return "pattern"
	case TypeCommit:
		return "commit"
	case TypeBelief:
		return "belief"
	case TypeForgeIssue:
		return "issue"
	case TypeForgePR:
		return "pr"
	default:
		return "unknown"
	}
}

// ranges lists every partition of the flat id space, ordered by base.
// ForgeIssue and ForgePR share the forge range; the issues table's kind
// column disambiguates.
var ranges = []struct {
	base int64
	end  int64
	typ  ContentType
}{
	{SessionBase, CodeBase, TypeSession},
	{CodeBase, PatternBase, TypeCode},
	{PatternBase, CommitBase, TypePattern},
	{CommitBase, BeliefBase, TypeCommit},
	{BeliefBase, ForgeBase, TypeBelief},
	{ForgeBase, IDLimit, TypeForgeIssue},
}

// TypeOfID maps a raw vector-index id to its content type.
func TypeOfID(id int64) (ContentType, error) {
	for _, r := range ranges {
		if id >= r.base && id < r.end {
			return r.typ, nil
		}
	}
	return 0, fmt.Errorf("id %d outside every offset range", id)
}

// RowIDOf maps a raw vector-index id to the rowid within its type's table.
func RowIDOf(id int64) (int64, error) {
	for _, r := range ranges {
		if id >= r.base && id < r.end {
			return id - r.base, nil
		}
	}
	return 0, fmt.Errorf("id %d outside every offset range", id)
}

// InBeliefRange reports whether a raw id belongs to the belief partition.
func InBeliefRange(id int64) bool {
	return id >= BeliefBase && id < ForgeBase
}

// InForgeRange reports whether a raw id belongs to the forge partition.
func InForgeRange(id int64) bool {
	return id >= ForgeBase && id < IDLimit
}

// CheckOffsets verifies the partition table is sorted, contiguous, and
// non-overlapping. Called once at store open; cheap enough to keep as a
// startup assertion rather than a per-query check.
func CheckOffsets() error {
	var prev int64
	for i, r := range ranges {
		if r.base >= r.end {
			return fmt.Errorf("offset range %d is empty or inverted", i)
		}
		if i > 0 && r.base < prev {
			return fmt.Errorf("offset range %d overlaps its predecessor", i)
		}
		prev = r.end
	}
	return nil
}
