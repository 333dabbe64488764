// Package store persists normalized conversations in an embedded SQLite
// database, keeping a synchronized FTS5 mirror for full-text search. The
// database is single-writer (SetMaxOpenConns(1), WAL mode) since this
// program assumes one local user driving ingestion and queries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Avyukth/coding-agent-session-search/internal/model"
)

// currentSchemaVersion is the schema_version this program creates and
// requires. A database stamped with a higher version was written by a
// newer build and must not be opened.
const currentSchemaVersion = 3

// Agent is a registered source agent (e.g. "codex").
type Agent struct {
	ID      int64
	Slug    string
	Name    string
	Version *string
	Kind    string
}

// Workspace is a deduplicated filesystem project root conversations can be
// associated with.
type Workspace struct {
	ID    int64
	Path  string
	Label *string
}

// InsertOutcome reports what InsertConversationTree actually changed.
type InsertOutcome struct {
	ConversationID  int64
	InsertedIndices []int
}

// SQLiteStore is the embedded-database conversation store.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default database location under the user's
// home directory.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cass", "store.db")
}

// Open opens (creating if necessary) the SQLite database at path, applying
// WAL mode and a busy timeout suited to a single local writer, and runs
// migrations.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewError(KindIO, "open", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewError(KindIO, "open", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Raw exposes the underlying *sql.DB for operations (like the search
// package's FTS queries) that don't belong on this type.
func (s *SQLiteStore) Raw() *sql.DB { return s.db }

func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			slug    TEXT NOT NULL UNIQUE,
			name    TEXT NOT NULL,
			version TEXT,
			kind    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workspaces (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			path  TEXT NOT NULL UNIQUE,
			label TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id      INTEGER NOT NULL REFERENCES agents(id),
			workspace_id  INTEGER REFERENCES workspaces(id),
			external_id   TEXT,
			title         TEXT,
			source_path   TEXT NOT NULL,
			started_at    INTEGER,
			ended_at      INTEGER,
			approx_tokens INTEGER,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			UNIQUE(agent_id, external_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			idx             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			author          TEXT,
			created_at      INTEGER,
			content         TEXT NOT NULL,
			extra_json      TEXT NOT NULL DEFAULT '{}',
			UNIQUE(conversation_id, idx)
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_messages USING fts5(
			content,
			role,
			author,
			content='messages',
			content_rowid='id'
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return NewError(KindIO, "migrate", err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.Exec(stmt); err != nil {
			return NewError(KindIO, "migrate", err)
		}
	}

	var versionStr string
	err = tx.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&versionStr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES ('schema_version', ?)`, fmt.Sprint(currentSchemaVersion)); err != nil {
			return NewError(KindIO, "migrate", err)
		}
	case err != nil:
		return NewError(KindIO, "migrate", err)
	default:
		var version int
		if _, err := fmt.Sscanf(versionStr, "%d", &version); err != nil {
			return NewError(KindSchema, "migrate", fmt.Errorf("malformed schema_version %q: %w", versionStr, err))
		}
		if version > currentSchemaVersion {
			return NewError(KindUnsupportedSchemaVersion, "migrate",
				fmt.Errorf("database schema_version %d is newer than supported version %d", version, currentSchemaVersion))
		}
	}

	return tx.Commit()
}

// SchemaVersion returns the schema_version recorded in the meta table.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var versionStr string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&versionStr)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, NewError(KindCorrupt, "schema_version", err)
	}
	if err != nil {
		return 0, NewError(KindIO, "schema_version", err)
	}
	var version int
	if _, err := fmt.Sscanf(versionStr, "%d", &version); err != nil {
		return 0, NewError(KindSchema, "schema_version", err)
	}
	return version, nil
}

// GetLastScanTs returns the last recorded incremental-scan watermark, or
// nil if none has been set yet.
func (s *SQLiteStore) GetLastScanTs(ctx context.Context) (*int64, error) {
	var valueStr string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_scan_ts'`).Scan(&valueStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewError(KindIO, "get_last_scan_ts", err)
	}
	var ts int64
	if _, err := fmt.Sscanf(valueStr, "%d", &ts); err != nil {
		return nil, NewError(KindSchema, "get_last_scan_ts", err)
	}
	return &ts, nil
}

// SetLastScanTs persists the incremental-scan watermark, overwriting any
// previous value.
func (s *SQLiteStore) SetLastScanTs(ctx context.Context, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES ('last_scan_ts', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(ts))
	if err != nil {
		return NewError(KindIO, "set_last_scan_ts", err)
	}
	return nil
}

// EnsureAgent inserts agent if its slug is unseen, returning the existing
// or newly assigned row id.
func (s *SQLiteStore) EnsureAgent(ctx context.Context, agent Agent) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agents(slug, name, version, kind) VALUES (?, ?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET name = excluded.name, version = excluded.version, kind = excluded.kind`,
		agent.Slug, agent.Name, agent.Version, agent.Kind)
	if err != nil {
		return 0, NewError(classifyErr(err), "ensure_agent", err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		var existing int64
		if err := s.db.QueryRowContext(ctx, `SELECT id FROM agents WHERE slug = ?`, agent.Slug).Scan(&existing); err != nil {
			return 0, NewError(KindIO, "ensure_agent", err)
		}
		return existing, nil
	}
	return id, nil
}

// EnsureWorkspace inserts a workspace row for path if unseen, returning the
// existing or newly assigned row id.
func (s *SQLiteStore) EnsureWorkspace(ctx context.Context, path string, label *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces(path, label) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET label = excluded.label`,
		path, label)
	if err != nil {
		return 0, NewError(classifyErr(err), "ensure_workspace", err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		var existing int64
		if err := s.db.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE path = ?`, path).Scan(&existing); err != nil {
			return 0, NewError(KindIO, "ensure_workspace", err)
		}
		return existing, nil
	}
	return id, nil
}

// InsertConversationTree performs append-only reconciliation of conv into
// the database: if an existing conversation matches on (agent_id,
// external_id), only messages whose idx is not already present are
// inserted and the conversation's ended_at/title/approx_tokens are
// refreshed; otherwise a new conversation row is created. The whole
// operation (conversation upsert, message inserts, FTS sync) runs in a
// single transaction, so a duplicate idx within the batch rolls back
// everything.
func (s *SQLiteStore) InsertConversationTree(ctx context.Context, agentID int64, workspaceID *int64, conv *model.NormalizedConversation) (InsertOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertOutcome{}, NewError(KindIO, "insert_conversation_tree", err)
	}
	defer tx.Rollback()

	metadataJSON, err := marshalJSON(conv.Metadata)
	if err != nil {
		return InsertOutcome{}, NewError(KindSchema, "insert_conversation_tree", err)
	}

	convID, existingIdx, err := findOrCreateConversation(ctx, tx, agentID, workspaceID, conv, metadataJSON)
	if err != nil {
		return InsertOutcome{}, err
	}

	insertMsgStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages(conversation_id, idx, role, author, created_at, content, extra_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return InsertOutcome{}, NewError(KindIO, "insert_conversation_tree", err)
	}
	defer insertMsgStmt.Close()

	insertFTSStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_messages(rowid, content, role, author) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return InsertOutcome{}, NewError(KindIO, "insert_conversation_tree", err)
	}
	defer insertFTSStmt.Close()

	var inserted []int
	for _, m := range conv.Messages {
		if _, ok := existingIdx[m.Idx]; ok {
			continue
		}
		extraJSON, err := marshalJSON(m.Extra)
		if err != nil {
			return InsertOutcome{}, NewError(KindSchema, "insert_conversation_tree", err)
		}
		res, err := insertMsgStmt.ExecContext(ctx, convID, m.Idx, string(m.Role), m.Author, m.CreatedAt, m.Content, extraJSON)
		if err != nil {
			return InsertOutcome{}, NewError(classifyErr(err), "insert_conversation_tree", err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return InsertOutcome{}, NewError(KindIO, "insert_conversation_tree", err)
		}
		if _, err := insertFTSStmt.ExecContext(ctx, rowID, m.Content, string(m.Role), m.Author); err != nil {
			return InsertOutcome{}, NewError(classifyErr(err), "insert_conversation_tree", err)
		}
		inserted = append(inserted, m.Idx)
	}

	if err := refreshConversationBounds(ctx, tx, convID, conv); err != nil {
		return InsertOutcome{}, err
	}

	if err := tx.Commit(); err != nil {
		return InsertOutcome{}, NewError(classifyErr(err), "insert_conversation_tree", err)
	}

	sort.Ints(inserted)
	return InsertOutcome{ConversationID: convID, InsertedIndices: inserted}, nil
}

// findOrCreateConversation returns the target conversation row id and the
// set of idx values already present for it (empty for a freshly created
// row).
func findOrCreateConversation(ctx context.Context, tx *sql.Tx, agentID int64, workspaceID *int64, conv *model.NormalizedConversation, metadataJSON string) (int64, map[int]struct{}, error) {
	if conv.ExternalID != nil {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM conversations WHERE agent_id = ? AND external_id = ?`,
			agentID, *conv.ExternalID).Scan(&existingID)
		if err == nil {
			existingIdx, err := loadExistingIndices(ctx, tx, existingID)
			if err != nil {
				return 0, nil, err
			}
			return existingID, existingIdx, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, nil, NewError(KindIO, "find_conversation", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations(agent_id, workspace_id, external_id, title, source_path, started_at, ended_at, approx_tokens, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agentID, workspaceID, conv.ExternalID, conv.Title, conv.SourcePath, conv.StartedAt, conv.EndedAt, conv.ApproxTokens, metadataJSON)
	if err != nil {
		return 0, nil, NewError(classifyErr(err), "insert_conversation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil, NewError(KindIO, "insert_conversation", err)
	}
	return id, map[int]struct{}{}, nil
}

func loadExistingIndices(ctx context.Context, tx *sql.Tx, conversationID int64) (map[int]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT idx FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, NewError(KindIO, "load_existing_indices", err)
	}
	defer rows.Close()

	out := map[int]struct{}{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, NewError(KindIO, "load_existing_indices", err)
		}
		out[idx] = struct{}{}
	}
	return out, rows.Err()
}

// refreshConversationBounds recomputes started_at/ended_at from the full
// surviving message set and updates title/approx_tokens to the latest
// scan's view.
func refreshConversationBounds(ctx context.Context, tx *sql.Tx, conversationID int64, conv *model.NormalizedConversation) error {
	var minTS, maxTS sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(created_at) FROM messages WHERE conversation_id = ? AND created_at IS NOT NULL`,
		conversationID).Scan(&minTS, &maxTS)
	if err != nil {
		return NewError(KindIO, "refresh_conversation_bounds", err)
	}

	var startedAt, endedAt any
	if minTS.Valid {
		startedAt = minTS.Int64
	}
	if maxTS.Valid {
		endedAt = maxTS.Int64
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET started_at = ?, ended_at = ?, title = COALESCE(?, title), approx_tokens = COALESCE(?, approx_tokens) WHERE id = ?`,
		startedAt, endedAt, conv.Title, conv.ApproxTokens, conversationID)
	if err != nil {
		return NewError(KindIO, "refresh_conversation_bounds", err)
	}
	return nil
}

// RebuildFTS repopulates fts_messages from messages, for disaster recovery
// when the FTS index and content table have drifted apart.
func (s *SQLiteStore) RebuildFTS(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO fts_messages(fts_messages) VALUES ('rebuild')`)
	if err != nil {
		return NewError(KindIO, "rebuild_fts", err)
	}
	return nil
}

func marshalJSON(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// classifyErr maps a raw driver error to a storage Kind by inspecting its
// message, since modernc.org/sqlite does not expose structured error codes
// in a stable public type across versions.
func classifyErr(err error) Kind {
	if err == nil {
		return KindIO
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed") {
		return KindConstraint
	}
	return KindIO
}
