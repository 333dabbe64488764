// Package tokenest provides a rough token-count estimate for normalized
// conversations, used to populate NormalizedConversation.ApproxTokens at
// ingest time. Since this program never calls an LLM, there is no real
// tokenizer to defer to; it uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose and code).
package tokenest

import "github.com/Avyukth/coding-agent-session-search/internal/model"

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	// 4 chars/token is standard for English and code.
	charsPerToken = 4

	// perMessageOverhead approximates the role/formatting tokens most chat
	// APIs add around each message.
	perMessageOverhead = 4
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateConversation returns the estimated total token count across
// every message in conv.
func EstimateConversation(conv *model.NormalizedConversation) int {
	total := 0
	for _, m := range conv.Messages {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}
