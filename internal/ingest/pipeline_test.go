package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Avyukth/coding-agent-session-search/internal/connector"
	"github.com/Avyukth/coding-agent-session-search/internal/connector/codex"
	"github.com/Avyukth/coding-agent-session-search/internal/store"
)

func TestPipelineIngestsCodexSource(t *testing.T) {
	ctx := context.Background()

	codexHome := t.TempDir()
	sessions := filepath.Join(codexHome, "sessions", "2025", "11", "21")
	if err := os.MkdirAll(sessions, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sample := `{"timestamp":"2025-09-30T15:42:34.559Z","type":"session_meta","payload":{"id":"test-id","cwd":"/test/workspace"}}
{"timestamp":"2025-09-30T15:42:36.190Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"write a hello program"}]}}
`
	if err := os.WriteFile(filepath.Join(sessions, "rollout-1.jsonl"), []byte(sample), 0o644); err != nil {
		t.Fatalf("write rollout: %v", err)
	}
	t.Setenv("CODEX_HOME", codexHome)

	dbPath := filepath.Join(t.TempDir(), "ingest.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	registry := connector.NewRegistry(codex.New())
	p, err := NewPipeline(registry, st, nil, nil)
	if err != nil {
		t.Fatalf("new_pipeline: %v", err)
	}

	summary, err := p.Ingest(ctx, []Source{{AgentSlug: codex.Slug, DataRoot: codexHome}}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.ConversationsSeen != 1 {
		t.Errorf("conversations seen = %d, want 1", summary.ConversationsSeen)
	}
	if summary.ConversationsCreated != 1 {
		t.Errorf("conversations created = %d, want 1", summary.ConversationsCreated)
	}
	if summary.MessagesInserted != 1 {
		t.Errorf("messages inserted = %d, want 1", summary.MessagesInserted)
	}

	var msgCount int64
	if err := st.Raw().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if msgCount != 1 {
		t.Errorf("persisted message count = %d, want 1", msgCount)
	}

	// Re-ingesting the same source should be a no-op (already reconciled).
	summary2, err := p.Ingest(ctx, []Source{{AgentSlug: codex.Slug, DataRoot: codexHome}}, nil)
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if summary2.MessagesInserted != 0 {
		t.Errorf("re-ingest messages inserted = %d, want 0", summary2.MessagesInserted)
	}
}

func TestPipelineSkipsUndetectedSource(t *testing.T) {
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "ingest_skip.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	registry := connector.NewRegistry(codex.New())
	p, err := NewPipeline(registry, st, nil, &Config{SkipUndetected: true})
	if err != nil {
		t.Fatalf("new_pipeline: %v", err)
	}

	t.Setenv("CODEX_HOME", "") // undetected: no sessions dir present
	emptyHome := t.TempDir()
	summary, err := p.Ingest(ctx, []Source{{AgentSlug: codex.Slug, DataRoot: emptyHome}}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.ConversationsSeen != 0 {
		t.Errorf("conversations seen = %d, want 0", summary.ConversationsSeen)
	}
}
