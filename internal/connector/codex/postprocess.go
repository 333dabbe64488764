package codex

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Avyukth/coding-agent-session-search/internal/connector"
	"github.com/Avyukth/coding-agent-session-search/internal/model"
)

// rawMessage is a single pre-postprocessing message, as emitted by the
// format-specific parsers in parse.go.
type rawMessage struct {
	role      string
	author    *string
	content   string
	createdAt int64
	hasTS     bool
}

// rawConversation accumulates one rollout file's contents before the shared
// post-processing rules (filtering, re-indexing, title/bounds derivation)
// run.
type rawConversation struct {
	cwd        string
	sessionID  string
	cliVersion string
	isLegacy   bool
	messages   []rawMessage
}

func (r *rawConversation) addMessage(m rawMessage) {
	r.messages = append(r.messages, m)
}

// Scan walks sc.DataRoot/sessions for rollout files, parses each by its
// on-disk format, and applies the shared post-processing rules. A file that
// fails to parse entirely is skipped; Scan only fails if the sessions
// directory itself cannot be walked.
func (c *Connector) Scan(ctx context.Context, sc connector.ScanContext) ([]model.NormalizedConversation, error) {
	root := filepath.Join(sc.DataRoot, "sessions")

	files, err := findRolloutFiles(root)
	if err != nil {
		return nil, connector.NewError(connector.KindIO, "scan", err)
	}

	var out []model.NormalizedConversation
	for _, path := range files {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		var raw *rawConversation
		var perr error
		if filepath.Ext(path) == ".jsonl" {
			raw, perr = parseEnvelopeFile(path)
		} else {
			raw, perr = parseLegacyFile(path)
		}
		if perr != nil {
			// Whole-file parse failure: skip this rollout, keep going.
			continue
		}

		conv := postprocess(raw, path, sc.SinceTS)
		if conv == nil {
			continue
		}
		out = append(out, *conv)
	}

	return out, nil
}

// postprocess applies the shared filtering/derivation rules and returns the
// canonical conversation, or nil if nothing survives filtering.
func postprocess(raw *rawConversation, path string, sinceTS *int64) *model.NormalizedConversation {
	var kept []model.NormalizedMessage
	idx := 0

	for _, m := range raw.messages {
		content := strings.TrimSpace(m.content)
		if content == "" {
			continue
		}

		if sinceTS != nil && m.hasTS && m.createdAt < *sinceTS {
			// Strictly older than the bound: drop. Messages with unknown
			// timestamps are kept even when a bound is set, since we cannot
			// tell whether they predate it.
			continue
		}

		var createdAt *int64
		if m.hasTS {
			ts := m.createdAt
			createdAt = &ts
		}

		kept = append(kept, model.NormalizedMessage{
			Idx:       idx,
			Role:      model.Role(m.role),
			Author:    m.author,
			CreatedAt: createdAt,
			Content:   content,
			Extra:     map[string]any{},
		})
		idx++
	}

	if len(kept) == 0 {
		return nil
	}

	externalID := externalIDFromPath(path)

	conv := &model.NormalizedConversation{
		AgentSlug:  Slug,
		SourcePath: path,
		Messages:   kept,
		Metadata:   map[string]any{},
	}

	if externalID != "" {
		conv.ExternalID = &externalID
	}
	if raw.cwd != "" {
		cwd := raw.cwd
		conv.WorkspacePath = &cwd
	}
	if raw.sessionID != "" {
		conv.Metadata["session_id"] = raw.sessionID
	}
	if raw.cliVersion != "" {
		conv.Metadata["cli_version"] = raw.cliVersion
	}
	if raw.isLegacy {
		conv.Metadata["source"] = "rollout_json"
	} else {
		conv.Metadata["source"] = "rollout_jsonl"
	}

	if first := conv.FirstUserMessage(); first != nil {
		title := deriveTitle(first.Content)
		conv.Title = &title
	}

	conv.StartedAt, conv.EndedAt = timestampBounds(kept)

	return conv
}

// externalIDFromPath derives a stable per-file identifier from the rollout
// file's base name, stripped of its extension. Returns "" for an empty stem.
func externalIDFromPath(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem
}

// deriveTitle takes the first line of content, truncated to a reasonable
// display length.
func deriveTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	const maxLen = 120
	if len(line) > maxLen {
		line = line[:maxLen]
	}
	return line
}

// timestampBounds returns the min/max CreatedAt among msgs, or nil/nil if
// none carry a timestamp.
func timestampBounds(msgs []model.NormalizedMessage) (*int64, *int64) {
	var min, max *int64
	for i := range msgs {
		ts := msgs[i].CreatedAt
		if ts == nil {
			continue
		}
		if min == nil || *ts < *min {
			v := *ts
			min = &v
		}
		if max == nil || *ts > *max {
			v := *ts
			max = &v
		}
	}
	return min, max
}
