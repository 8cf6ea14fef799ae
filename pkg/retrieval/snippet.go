package retrieval

import (
	"strings"

	"github.com/scryer-dev/scryer/pkg/store"
)

// snippetMax is the rune budget for truncated snippets.
const snippetMax = 200

// Snippet renders the compact first-step view of a result. Beliefs,
// commits, and co-change entries are already one-liners and pass through;
// everything else is flattened and truncated on rune boundaries so
// multi-byte text never splits mid-character.
func Snippet(eventType, content string) string {
	flat := collapseWhitespace(content)

	switch {
	case strings.HasPrefix(eventType, "belief."),
		eventType == "git.commit",
		eventType == "git.co_change":
		return flat
	case strings.HasPrefix(eventType, "pattern."):
		return firstSentence(flat)
	}
	return truncateRunes(flat, snippetMax)
}

// SnippetFor is Snippet keyed off a resolved record.
func SnippetFor(rec *store.Record) string {
	return Snippet(rec.EventType, rec.Content)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstSentence cuts at the first sentence boundary, keeping at most the
// snippet budget.
func firstSentence(s string) string {
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			return truncateRunes(s[:i+1], snippetMax)
		}
	}
	return truncateRunes(s, snippetMax)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
