package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSnippetBeliefPassesThrough(t *testing.T) {
	content := "prefer explicit errors over panics (settled, pkg/store) [evidence: 4/4]"
	assert.Equal(t, content, Snippet("belief.surface", content))
}

func TestSnippetCommitPassesThrough(t *testing.T) {
	content := "ab12cd3: tighten oracle deadline handling (jo)"
	assert.Equal(t, content, Snippet("git.commit", content))
}

func TestSnippetTruncatesLongContent(t *testing.T) {
	content := strings.Repeat("x", 500)
	got := Snippet("session.event", content)
	assert.Equal(t, 203, len(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSnippetTruncationIsRuneSafe(t *testing.T) {
	content := strings.Repeat("日本語テキスト", 100)
	got := Snippet("code.function", content)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, snippetMax+3, utf8.RuneCountInString(got))
}

func TestSnippetCollapsesNewlines(t *testing.T) {
	got := Snippet("session.event", "first line\nsecond line\n\nthird")
	assert.Equal(t, "first line second line third", got)
}

func TestSnippetPatternFirstSentence(t *testing.T) {
	got := Snippet("pattern.surface", "Retry with backoff. Used everywhere the network is involved. More prose.")
	assert.Equal(t, "Retry with backoff.", got)
}

func TestSnippetShortContentUntouched(t *testing.T) {
	assert.Equal(t, "short", Snippet("session.event", "short"))
}
