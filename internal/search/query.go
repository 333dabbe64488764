package search

import "strings"

// MatchType classifies how a Hit satisfied the query.
type MatchType int

const (
	// MatchExact means the literal query matched as a bare FTS5 term.
	MatchExact MatchType = iota
	// MatchSubstring means an explicit *term* wildcard matched anywhere in
	// the message content.
	MatchSubstring
	// MatchPrefix means an explicit term* wildcard matched a leading
	// substring of the message content.
	MatchPrefix
	// MatchImplicitWildcard means the exact-match stage returned too few
	// hits and the query was retried as a substring scan.
	MatchImplicitWildcard
	// MatchFuzzy is reserved for a future edit-distance fallback stage;
	// never produced today.
	MatchFuzzy
)

func (m MatchType) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchSubstring:
		return "substring"
	case MatchPrefix:
		return "prefix"
	case MatchImplicitWildcard:
		return "implicit_wildcard"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// stage identifies which of the two query backends a compiledQuery runs
// against: the FTS5 index (tokenized, word-boundary matching) or a LIKE
// scan over the raw message content (arbitrary substring matching, which
// FTS5's tokenizer cannot express).
type stage int

const (
	stageFTS stage = iota
	stageLike
)

// compiledQuery is a raw query string translated into the predicate for
// one query stage, tagged with the MatchType it represents.
type compiledQuery struct {
	stage     stage
	pattern   string // FTS5 MATCH expression, or a LIKE pattern
	matchType MatchType
	terms     []string // literal words/phrase to locate for snippet highlighting
}

// compile translates a user query into the first applicable stage:
// explicit wildcard syntax (*term*, term*) always runs as a LIKE substring
// scan, since FTS5's tokenizer cannot match inside a word; a quoted phrase
// ("a b") passes through as an FTS5 phrase match; space-separated bare
// words run as an FTS5 AND of terms; a single bare word runs as an exact
// FTS5 MATCH. Implicit-wildcard retry is a separate stage driven by the
// caller (see client.go).
func compile(raw string) compiledQuery {
	trimmed := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(trimmed, "*") && strings.HasSuffix(trimmed, "*") && len(trimmed) > 1:
		inner := trimmed[1 : len(trimmed)-1]
		return compiledQuery{stage: stageLike, pattern: "%" + escapeLike(inner) + "%", matchType: MatchSubstring, terms: []string{inner}}

	case strings.HasSuffix(trimmed, "*") && len(trimmed) > 1:
		inner := trimmed[:len(trimmed)-1]
		return compiledQuery{stage: stageLike, pattern: escapeLike(inner) + "%", matchType: MatchPrefix, terms: []string{inner}}

	case strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) > 1:
		inner := trimmed[1 : len(trimmed)-1]
		return compiledQuery{stage: stageFTS, pattern: ftsQuote(inner), matchType: MatchExact, terms: []string{inner}}

	default:
		terms := strings.Fields(trimmed)
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = ftsQuote(t)
		}
		return compiledQuery{stage: stageFTS, pattern: strings.Join(quoted, " AND "), matchType: MatchExact, terms: terms}
	}
}

// compileImplicitWildcard builds the fallback substring-scan predicate used
// when the exact stage is sparse: a LIKE %term% scan over raw content.
func compileImplicitWildcard(raw string) compiledQuery {
	trimmed := strings.TrimSpace(raw)
	return compiledQuery{stage: stageLike, pattern: "%" + escapeLike(trimmed) + "%", matchType: MatchImplicitWildcard, terms: []string{trimmed}}
}

// ftsQuote wraps a term in double quotes for FTS5's string-literal syntax,
// escaping embedded quotes, so punctuation inside the query term is
// treated literally rather than as an FTS5 operator.
func ftsQuote(term string) string {
	escaped := strings.ReplaceAll(term, `"`, `""`)
	return `"` + escaped + `"`
}

// escapeLike escapes SQL LIKE metacharacters (%, _) in term so they match
// literally; callers add their own leading/trailing % wildcards afterward.
func escapeLike(term string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(term)
}
