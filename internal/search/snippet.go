package search

import (
	"strings"

	"github.com/Avyukth/coding-agent-session-search/internal/model"
)

// snippetWindow is how many characters of context surround a match on
// either side in a generated Snippet.
const snippetWindow = 40

// maxSnippetsPerHit caps how many highlighted excerpts a single Hit
// carries, so a message matching the same term repeatedly doesn't balloon
// the result payload.
const maxSnippetsPerHit = 3

const (
	highlightOpen  = "‹‹"
	highlightClose = "››"
)

// buildSnippets locates each of terms inside content (case-insensitively)
// and returns a windowed excerpt per distinct match, with the matched
// substring wrapped in highlightOpen/highlightClose markers. Start/End on
// the returned Snippet are byte offsets of the excerpt into content, not
// of the match itself.
func buildSnippets(content string, terms []string) []model.Snippet {
	lower := strings.ToLower(content)
	var snippets []model.Snippet
	seen := map[int]bool{}

	for _, raw := range terms {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			continue
		}
		idx := strings.Index(lower, term)
		if idx < 0 || seen[idx] {
			continue
		}
		seen[idx] = true

		start := idx - snippetWindow
		if start < 0 {
			start = 0
		}
		end := idx + len(term) + snippetWindow
		if end > len(content) {
			end = len(content)
		}

		text := content[start:idx] + highlightOpen + content[idx:idx+len(term)] + highlightClose + content[idx+len(term):end]
		snippets = append(snippets, model.Snippet{Text: text, Start: start, End: end})
		if len(snippets) >= maxSnippetsPerHit {
			break
		}
	}
	return snippets
}
