package codex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// envelope is the modern {timestamp, type, payload} JSONL record shape.
type envelope struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// sessionMetaPayload is payload for type == "session_meta".
type sessionMetaPayload struct {
	ID         string `json:"id"`
	CWD        string `json:"cwd"`
	CLIVersion string `json:"cli_version"`
}

// responseItemMessagePayload is payload for type == "response_item" when
// payload.type == "message".
type responseItemMessagePayload struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart is one element of a response_item message's content array.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// eventMsgPayload covers the event_msg sub-types we recognize
// (agent_reasoning, user_message); unrecognized sub-types are discarded by
// the caller based on Type alone.
type eventMsgPayload struct {
	Type    string `json:"type"`
	Text    string `json:"text"`    // agent_reasoning
	Message string `json:"message"` // user_message
}

// parseTimestamp accepts either an RFC-3339 string or a numeric
// millisecond epoch and returns epoch-ms. ok is false if raw is absent or
// neither form parses.
func parseTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli(), true
			}
		}
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int64(n), true
	}

	return 0, false
}

// extractText concatenates the textual parts (input_text.text, text.text) of
// a content array, in order, with a single space separator.
func extractText(parts []contentPart) string {
	var texts []string
	for _, p := range parts {
		if p.Type == "input_text" || p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// parseEnvelopeFile reads a modern .jsonl rollout file and returns the raw,
// pre-postprocessing conversation accumulator. Malformed lines are skipped;
// they never abort the file.
func parseEnvelopeFile(path string) (*rawConversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codex: open %s: %w", path, err)
	}
	defer f.Close()

	raw := &rawConversation{}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var e envelope
		if err := json.Unmarshal(line, &e); err != nil {
			continue // malformed line: skip, don't abort the file
		}

		ts, hasTS := parseTimestamp(e.Timestamp)

		switch e.Type {
		case "session_meta":
			var p sessionMetaPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				continue
			}
			if raw.cwd == "" {
				raw.cwd = p.CWD
			}
			if p.ID != "" {
				raw.sessionID = p.ID
			}
			if p.CLIVersion != "" {
				raw.cliVersion = p.CLIVersion
			}

		case "response_item":
			var p responseItemMessagePayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				continue
			}
			if p.Type != "message" {
				continue
			}
			switch p.Role {
			case "user", "assistant", "system", "tool":
				content := extractText(p.Content)
				raw.addMessage(rawMessage{
					role:      p.Role,
					content:   content,
					createdAt: ts,
					hasTS:     hasTS,
				})
			}

		case "event_msg":
			var p eventMsgPayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				continue
			}
			switch p.Type {
			case "agent_reasoning":
				author := "reasoning"
				raw.addMessage(rawMessage{
					role:      "assistant",
					author:    &author,
					content:   p.Text,
					createdAt: ts,
					hasTS:     hasTS,
				})
			case "user_message":
				raw.addMessage(rawMessage{
					role:      "user",
					content:   p.Message,
					createdAt: ts,
					hasTS:     hasTS,
				})
			default:
				// token_count and any other event_msg sub-type: discarded.
			}

		default:
			// turn_context and any other unknown discriminant: discarded.
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("codex: scan %s: %w", path, err)
	}

	return raw, nil
}

// legacyRollout is the single-object legacy .json rollout shape.
type legacyRollout struct {
	Session struct {
		ID  string `json:"id"`
		CWD string `json:"cwd"`
	} `json:"session"`
	Items []legacyItem `json:"items"`
}

// legacyItem is one entry in a legacy rollout's items array.
type legacyItem struct {
	Role      string          `json:"role"`
	Timestamp json.RawMessage `json:"timestamp"`
	Content   string          `json:"content"`
}

// parseLegacyFile reads a legacy single-JSON-object .json rollout file.
func parseLegacyFile(path string) (*rawConversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codex: read %s: %w", path, err)
	}

	var doc legacyRollout
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("codex: parse legacy rollout %s: %w", path, err)
	}

	raw := &rawConversation{
		cwd:       doc.Session.CWD,
		sessionID: doc.Session.ID,
		isLegacy:  true,
	}

	for _, item := range doc.Items {
		ts, hasTS := parseTimestamp(item.Timestamp)
		raw.addMessage(rawMessage{
			role:      item.Role,
			content:   item.Content,
			createdAt: ts,
			hasTS:     hasTS,
		})
	}

	return raw, nil
}
