// Package model defines the canonical conversation/message schema shared by
// connectors, storage, and search. It is a pure data contract: no behavior
// beyond construction and small derived accessors.
package model

// Role identifies the author of a message within a conversation.
type Role string

const (
	// RoleUser is a message sent by the human operator.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the agent.
	RoleAssistant Role = "assistant"
	// RoleSystem is a system/instruction message.
	RoleSystem Role = "system"
	// RoleTool is an auxiliary tool-invocation or tool-result event.
	RoleTool Role = "tool"
)

// NormalizedMessage is a single turn or auxiliary event inside a
// NormalizedConversation, in the shape every connector must emit.
type NormalizedMessage struct {
	// Idx is the per-conversation ordinal. Unique within a conversation and
	// contiguous from 0 once post-processing (filtering, re-indexing) has run.
	Idx int

	// Role is the author of the message.
	Role Role

	// Author is an optional fine-grained tag, e.g. "reasoning".
	Author *string

	// CreatedAt is the message's epoch-millisecond timestamp, if known.
	CreatedAt *int64

	// Content is the message text.
	Content string

	// Extra carries connector-specific fields that don't fit the canonical
	// shape (e.g. raw content parts, cli_version). Never nil in emitted
	// output; callers should treat it as read-only.
	Extra map[string]any

	// Snippets holds highlight ranges computed during search. Populated only
	// on search results, never persisted.
	Snippets []Snippet
}

// Snippet is a highlighted excerpt of message content, computed at query
// time to show why a message matched.
type Snippet struct {
	// Text is the excerpt, with match regions marked by the caller's
	// highlighting convention (see search.Hit).
	Text string
	// Start and End are byte offsets into the original Content.
	Start, End int
}

// NormalizedConversation is the canonical shape every connector emits for a
// single agent session.
type NormalizedConversation struct {
	// AgentSlug identifies the owning agent, e.g. "codex".
	AgentSlug string

	// ExternalID is a stable identifier across re-ingestions of the same
	// session, when the source format provides one.
	ExternalID *string

	// Title is a short human label, usually derived from the first user
	// message.
	Title *string

	// WorkspacePath is the filesystem project root this session ran in, if
	// the source format records it.
	WorkspacePath *string

	// SourcePath is the absolute path of the file this conversation was
	// parsed from.
	SourcePath string

	// StartedAt / EndedAt are epoch-millisecond bounds over the surviving
	// messages' timestamps. Either may be unset if no message carried one.
	StartedAt, EndedAt *int64

	// ApproxTokens is an approximate token count for the whole conversation,
	// computed by the ingest pipeline (see internal/tokenest).
	ApproxTokens *int

	// Metadata is a free-form keyed value tree (session id, cli version,
	// source format marker, etc.).
	Metadata map[string]any

	// Messages is the ordered sequence of surviving messages, idx 0..N-1.
	Messages []NormalizedMessage
}

// FirstUserMessage returns the first message with RoleUser, or nil if none
// exists. Used to derive conversation titles.
func (c *NormalizedConversation) FirstUserMessage() *NormalizedMessage {
	for i := range c.Messages {
		if c.Messages[i].Role == RoleUser {
			return &c.Messages[i]
		}
	}
	return nil
}
