// Package search implements the staged query layer over the FTS5 mirror
// maintained by internal/store: an exact/explicit-wildcard pass first, with
// an implicit-wildcard retry when that pass comes back too sparse to be
// useful.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Avyukth/coding-agent-session-search/internal/model"
	"github.com/Avyukth/coding-agent-session-search/internal/store"
)

// defaultSparseThreshold is the hit count below which the exact/explicit
// stage is considered too sparse and an implicit-wildcard retry fires.
const defaultSparseThreshold = 3

// defaultLimit is the hit cap applied when a caller leaves Filters.Limit
// at its zero value.
const defaultLimit = 200

// Filters narrows a search to a subset of the corpus.
type Filters struct {
	AgentSlug     *string
	WorkspacePath *string
	Role          *string
	Author        *string
	SinceTS       *int64
	UntilTS       *int64
	Limit         int
	Offset        int
}

// Hit is one matched message, with enough conversation context to render a
// result row.
type Hit struct {
	ConversationID int64
	MessageID      int64
	AgentSlug      string
	Title          *string
	WorkspacePath  *string
	Role           string
	Content        string
	CreatedAt      *int64
	MatchType      MatchType
	Snippets       []model.Snippet
}

// SearchResult is the outcome of a fallback-aware search: the hits
// returned, tagged with a single MatchType describing which stage
// produced the returned result set as a whole.
type SearchResult struct {
	Hits      []Hit
	MatchType MatchType
}

// Client runs queries against a store's FTS5 mirror.
type Client struct {
	db              *sql.DB
	st              *store.SQLiteStore // non-nil only when constructed via Open; Client owns its lifecycle then
	sparseThreshold int
	agentFilter     *string
}

// NewClient constructs a Client reading from db (typically
// (*store.SQLiteStore).Raw()).
func NewClient(db *sql.DB) *Client {
	return &Client{db: db, sparseThreshold: defaultSparseThreshold}
}

// Open opens the SQLite database at dbPath and returns a Client scoped to
// it, or (nil, nil) if the database contains no messages yet. When
// agentFilter is non-nil, it's applied as the default agent slug filter
// for any call whose Filters.AgentSlug is left nil. The returned Client
// owns the underlying connection; callers must Close it.
func Open(dbPath string, agentFilter *string) (*Client, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, NewError(KindIO, "open", err)
	}

	var count int
	if err := st.Raw().QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		st.Close()
		return nil, NewError(KindIO, "open", err)
	}
	if count == 0 {
		st.Close()
		return nil, nil
	}

	c := NewClient(st.Raw())
	c.st = st
	c.agentFilter = agentFilter
	return c, nil
}

// Close releases the Client's underlying database connection. It is a
// no-op for a Client built with NewClient, which does not own its db.
func (c *Client) Close() error {
	if c.st != nil {
		return c.st.Close()
	}
	return nil
}

// WithSparseThreshold overrides the hit-count floor that triggers the
// implicit-wildcard fallback stage.
func (c *Client) WithSparseThreshold(n int) *Client {
	c.sparseThreshold = n
	return c
}

// Search runs a single query stage for raw, with no fallback retry: a
// bare word or AND-of-terms and a quoted phrase run as FTS5 MATCH,
// explicit *term*/term* wildcard syntax runs as a LIKE scan.
func (c *Client) Search(ctx context.Context, raw string, filters Filters, limit, offset int) ([]Hit, error) {
	filters.Limit = limit
	filters.Offset = offset
	return c.run(ctx, compile(raw), filters)
}

// SearchWithFallback runs the staged query: first the exact/explicit-
// wildcard form of raw, falling back to an implicit-wildcard substring
// retry only if the first stage returns fewer than sparseThreshold hits
// (or, if sparseThreshold is zero, the Client's configured default). The
// returned SearchResult carries a single MatchType describing whichever
// stage's hits were ultimately returned.
func (c *Client) SearchWithFallback(ctx context.Context, raw string, filters Filters, limit, offset, sparseThreshold int) (SearchResult, error) {
	filters.Limit = limit
	filters.Offset = offset
	threshold := sparseThreshold
	if threshold <= 0 {
		threshold = c.sparseThreshold
	}

	primary := compile(raw)
	hits, err := c.run(ctx, primary, filters)
	if err != nil {
		return SearchResult{}, err
	}
	if len(hits) >= threshold || primary.matchType != MatchExact {
		return SearchResult{Hits: hits, MatchType: primary.matchType}, nil
	}

	fallback := compileImplicitWildcard(raw)
	fallbackHits, err := c.run(ctx, fallback, filters)
	if err != nil {
		return SearchResult{}, err
	}
	if len(fallbackHits) > len(hits) {
		return SearchResult{Hits: fallbackHits, MatchType: MatchImplicitWildcard}, nil
	}
	return SearchResult{Hits: hits, MatchType: primary.matchType}, nil
}

func (c *Client) run(ctx context.Context, q compiledQuery, filters Filters) ([]Hit, error) {
	const convJoin = `
		JOIN (
			SELECT conversations.id,
			       agents.slug AS agent_slug_resolved,
			       conversations.title,
			       workspaces.path AS workspace_path
			FROM conversations
			JOIN agents ON agents.id = conversations.agent_id
			LEFT JOIN workspaces ON workspaces.id = conversations.workspace_id
		) c ON c.id = m.conversation_id
	`

	if filters.AgentSlug == nil && c.agentFilter != nil {
		filters.AgentSlug = c.agentFilter
	}

	var args []any
	var sqlStr string
	switch q.stage {
	case stageFTS:
		sqlStr = `
			SELECT m.id, m.conversation_id, c.agent_slug_resolved, c.title, c.workspace_path, m.role, m.content, m.created_at
			FROM fts_messages f
			JOIN messages m ON m.id = f.rowid
		` + convJoin + `
			WHERE f.content MATCH ?
		`
		args = append(args, q.pattern)
	case stageLike:
		sqlStr = `
			SELECT m.id, m.conversation_id, c.agent_slug_resolved, c.title, c.workspace_path, m.role, m.content, m.created_at
			FROM messages m
		` + convJoin + `
			WHERE m.content LIKE ? ESCAPE '\'
		`
		args = append(args, q.pattern)
	}

	if filters.AgentSlug != nil {
		sqlStr += " AND c.agent_slug_resolved = ?"
		args = append(args, *filters.AgentSlug)
	}
	if filters.WorkspacePath != nil {
		sqlStr += " AND c.workspace_path = ?"
		args = append(args, *filters.WorkspacePath)
	}
	if filters.Role != nil {
		sqlStr += " AND m.role = ?"
		args = append(args, *filters.Role)
	}
	if filters.Author != nil {
		sqlStr += " AND m.author = ?"
		args = append(args, *filters.Author)
	}
	if filters.SinceTS != nil {
		sqlStr += " AND (m.created_at IS NULL OR m.created_at >= ?)"
		args = append(args, *filters.SinceTS)
	}
	if filters.UntilTS != nil {
		sqlStr += " AND (m.created_at IS NULL OR m.created_at <= ?)"
		args = append(args, *filters.UntilTS)
	}

	if q.stage == stageFTS {
		sqlStr += " ORDER BY f.rank"
	} else {
		sqlStr += " ORDER BY m.created_at"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sqlStr += fmt.Sprintf(" LIMIT %d", limit)
	if filters.Offset > 0 {
		sqlStr += fmt.Sprintf(" OFFSET %d", filters.Offset)
	}

	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, NewError(classifyQueryErr(err), "search", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.MessageID, &h.ConversationID, &h.AgentSlug, &h.Title, &h.WorkspacePath, &h.Role, &h.Content, &h.CreatedAt); err != nil {
			return nil, NewError(classifyQueryErr(err), "search", err)
		}
		h.MatchType = q.matchType
		h.Snippets = buildSnippets(h.Content, q.terms)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, NewError(classifyQueryErr(err), "search", err)
	}
	return hits, nil
}

// classifyQueryErr maps a raw driver error from a search query to a
// search Kind by inspecting its message: a malformed FTS5 MATCH
// expression (bad syntax after compilation) is a Query error; anything
// else surfacing mid-query from the SQLite backend is a Backend error.
func classifyQueryErr(err error) Kind {
	if err == nil {
		return KindIO
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error") || strings.Contains(msg, "malformed match") {
		return KindQuery
	}
	return KindBackend
}
