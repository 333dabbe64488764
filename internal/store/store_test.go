package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Avyukth/coding-agent-session-search/internal/model"
)

func sampleAgent() Agent {
	version := "1.0"
	return Agent{Slug: "tester", Name: "Tester", Version: &version, Kind: "cli"}
}

func sampleConv(externalID *string, messages []model.NormalizedMessage) *model.NormalizedConversation {
	started := int64(1)
	ended := int64(2)
	tokens := 42
	title := "Demo conversation"
	workspace := "/workspace/demo"
	return &model.NormalizedConversation{
		AgentSlug:     "tester",
		WorkspacePath: &workspace,
		ExternalID:    externalID,
		Title:         &title,
		SourcePath:    "/logs/demo.jsonl",
		StartedAt:     &started,
		EndedAt:       &ended,
		ApproxTokens:  &tokens,
		Metadata:      map[string]any{"k": "v"},
		Messages:      messages,
	}
}

func msg(idx int, createdAt int64) model.NormalizedMessage {
	author := "user"
	ts := createdAt
	return model.NormalizedMessage{
		Idx:       idx,
		Role:      model.RoleUser,
		Author:    &author,
		CreatedAt: &ts,
		Content:   "msg-" + itoaStore(idx),
		Extra:     map[string]any{},
	}
}

func itoaStore(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func strPtr(s string) *string { return &s }

func TestSchemaVersionCreatedOnOpen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("schema_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema_version = %d, want %d", version, currentSchemaVersion)
	}

	if _, err := s.Raw().ExecContext(ctx, `DELETE FROM meta`); err != nil {
		t.Fatalf("delete meta: %v", err)
	}
	_, err = s.SchemaVersion(ctx)
	if err == nil {
		t.Fatal("expected error after removing meta row")
	}
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Kind() != KindCorrupt {
		t.Errorf("kind = %v, want KindCorrupt", err)
	}
}

func TestRebuildFTSRepopulatesRows(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "fts.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	agentID, err := s.EnsureAgent(ctx, sampleAgent())
	if err != nil {
		t.Fatalf("ensure_agent: %v", err)
	}
	wsID, err := s.EnsureWorkspace(ctx, "/workspace/demo", strPtr("Demo"))
	if err != nil {
		t.Fatalf("ensure_workspace: %v", err)
	}

	conv := sampleConv(strPtr("ext-1"), []model.NormalizedMessage{msg(0, 10), msg(1, 20)})
	if _, err := s.InsertConversationTree(ctx, agentID, &wsID, conv); err != nil {
		t.Fatalf("insert_conversation_tree: %v", err)
	}

	var msgCount int64
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	// fts_messages is an external-content table, so COUNT(*) on it reads the
	// messages table; the fts_messages_docsize shadow table holds one row per
	// indexed message and so reflects the FTS index itself.
	var ftsCount int64
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_messages_docsize`).Scan(&ftsCount); err != nil {
		t.Fatalf("count fts: %v", err)
	}
	if ftsCount != msgCount {
		t.Fatalf("fts_count = %d, want %d", ftsCount, msgCount)
	}

	if _, err := s.Raw().ExecContext(ctx, `DELETE FROM fts_messages`); err != nil {
		t.Fatalf("delete fts: %v", err)
	}
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_messages_docsize`).Scan(&ftsCount); err != nil {
		t.Fatalf("count fts after delete: %v", err)
	}
	if ftsCount != 0 {
		t.Fatalf("fts_count after delete = %d, want 0", ftsCount)
	}

	if err := s.RebuildFTS(ctx); err != nil {
		t.Fatalf("rebuild_fts: %v", err)
	}
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_messages_docsize`).Scan(&ftsCount); err != nil {
		t.Fatalf("count fts after rebuild: %v", err)
	}
	if ftsCount != msgCount {
		t.Fatalf("fts_count after rebuild = %d, want %d", ftsCount, msgCount)
	}
}

func TestTransactionRollsBackOnDuplicateIdx(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "rollback.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	agentID, err := s.EnsureAgent(ctx, sampleAgent())
	if err != nil {
		t.Fatalf("ensure_agent: %v", err)
	}

	conv := sampleConv(nil, []model.NormalizedMessage{msg(0, 1), msg(0, 2)})
	if _, err := s.InsertConversationTree(ctx, agentID, nil, conv); err == nil {
		t.Fatal("expected error on duplicate idx within batch")
	}

	var convCount, msgCount int64
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&convCount); err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if convCount != 0 {
		t.Errorf("conversations count = %d, want 0", convCount)
	}
	if msgCount != 0 {
		t.Errorf("messages count = %d, want 0", msgCount)
	}
}

func TestAppendOnlyUpdatesExistingConversation(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "append.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	agentID, err := s.EnsureAgent(ctx, sampleAgent())
	if err != nil {
		t.Fatalf("ensure_agent: %v", err)
	}

	first := sampleConv(strPtr("ext-2"), []model.NormalizedMessage{msg(0, 100), msg(1, 200)})
	outcome1, err := s.InsertConversationTree(ctx, agentID, nil, first)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if got, want := outcome1.InsertedIndices, []int{0, 1}; !intSlicesEqual(got, want) {
		t.Fatalf("outcome1.InsertedIndices = %v, want %v", got, want)
	}

	second := sampleConv(strPtr("ext-2"), []model.NormalizedMessage{msg(0, 100), msg(1, 200), msg(2, 300)})
	outcome2, err := s.InsertConversationTree(ctx, agentID, nil, second)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if outcome2.ConversationID != outcome1.ConversationID {
		t.Errorf("conversation id changed: %d != %d", outcome2.ConversationID, outcome1.ConversationID)
	}
	if got, want := outcome2.InsertedIndices, []int{2}; !intSlicesEqual(got, want) {
		t.Fatalf("outcome2.InsertedIndices = %v, want %v", got, want)
	}

	rows, err := s.Raw().QueryContext(ctx, `SELECT idx, created_at FROM messages ORDER BY idx`)
	if err != nil {
		t.Fatalf("query messages: %v", err)
	}
	defer rows.Close()
	var got [][2]int64
	for rows.Next() {
		var idx, createdAt int64
		if err := rows.Scan(&idx, &createdAt); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, [2]int64{idx, createdAt})
	}
	want := [][2]int64{{0, 100}, {1, 200}, {2, 300}}
	if len(got) != len(want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}

	var endedAt int64
	if err := s.Raw().QueryRowContext(ctx, `SELECT ended_at FROM conversations WHERE id = ?`, outcome1.ConversationID).Scan(&endedAt); err != nil {
		t.Fatalf("query ended_at: %v", err)
	}
	if endedAt != 300 {
		t.Errorf("ended_at = %d, want 300", endedAt)
	}
}

func TestLargeBatchInsertKeepsFTSInSync(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "batch.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	agentID, err := s.EnsureAgent(ctx, sampleAgent())
	if err != nil {
		t.Fatalf("ensure_agent: %v", err)
	}

	var msgs []model.NormalizedMessage
	for idx := 0; idx < 200; idx++ {
		msgs = append(msgs, msg(idx, int64(1000+idx)))
	}
	conv := sampleConv(strPtr("batch-1"), msgs)

	outcome, err := s.InsertConversationTree(ctx, agentID, nil, conv)
	if err != nil {
		t.Fatalf("batch insert: %v", err)
	}
	if len(outcome.InsertedIndices) != 200 {
		t.Fatalf("inserted indices len = %d, want 200", len(outcome.InsertedIndices))
	}

	var msgCount, ftsCount int64
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if err := s.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_messages_docsize`).Scan(&ftsCount); err != nil {
		t.Fatalf("count fts: %v", err)
	}
	if msgCount != 200 || ftsCount != 200 {
		t.Fatalf("msgCount=%d ftsCount=%d, want 200/200", msgCount, ftsCount)
	}

	rows, err := s.Raw().QueryContext(ctx, `SELECT idx, created_at FROM messages ORDER BY idx LIMIT 3 OFFSET 197`)
	if err != nil {
		t.Fatalf("query tail: %v", err)
	}
	defer rows.Close()
	var got [][2]int64
	for rows.Next() {
		var idx, createdAt int64
		if err := rows.Scan(&idx, &createdAt); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, [2]int64{idx, createdAt})
	}
	want := [][2]int64{{197, 1197}, {198, 1198}, {199, 1199}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tail row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLastScanTsRoundtrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "scan.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ts, err := s.GetLastScanTs(ctx)
	if err != nil {
		t.Fatalf("get_last_scan_ts: %v", err)
	}
	if ts != nil {
		t.Fatalf("expected nil initially, got %v", *ts)
	}

	if err := s.SetLastScanTs(ctx, 1234); err != nil {
		t.Fatalf("set_last_scan_ts: %v", err)
	}
	ts, err = s.GetLastScanTs(ctx)
	if err != nil {
		t.Fatalf("get_last_scan_ts: %v", err)
	}
	if ts == nil || *ts != 1234 {
		t.Fatalf("got %v, want 1234", ts)
	}
	s.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	ts, err = s2.GetLastScanTs(ctx)
	if err != nil {
		t.Fatalf("get_last_scan_ts after reopen: %v", err)
	}
	if ts == nil || *ts != 1234 {
		t.Fatalf("got %v after reopen, want 1234", ts)
	}
}

func TestLastScanTsOverwrite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "scan_over.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.SetLastScanTs(ctx, 10); err != nil {
		t.Fatalf("set 10: %v", err)
	}
	if err := s.SetLastScanTs(ctx, 20); err != nil {
		t.Fatalf("set 20: %v", err)
	}
	ts, err := s.GetLastScanTs(ctx)
	if err != nil {
		t.Fatalf("get_last_scan_ts: %v", err)
	}
	if ts == nil || *ts != 20 {
		t.Fatalf("got %v, want 20", ts)
	}
}

func TestUnsupportedSchemaVersionErrors(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "schema.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("initial open: %v", err)
	}

	if _, err := s.Raw().ExecContext(ctx, `UPDATE meta SET value = '999' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("poison schema_version: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := Open(dbPath); err == nil {
		t.Fatal("expected error reopening with unsupported schema_version")
	}
}

func intSlicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
