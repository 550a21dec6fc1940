// ABOUTME: Conversation history model and the Store contract for session backends
// ABOUTME: Messages preserve role, tool call payloads, and correlation ids across turns

package session

import (
	"context"
	"errors"
	"time"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/llm"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("session: store closed")

// Message is one transcript entry persisted for a session. Assistant
// messages may carry tool calls; tool messages carry the correlation id
// of the call they answer.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChatMessage converts a stored message to the wire shape sent to the model.
func (m Message) ChatMessage() llm.ChatMessage {
	return llm.ChatMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}
}

// Store persists per-session transcripts. Implementations are safe for
// concurrent use.
type Store interface {
	// History returns the session's messages in append order. A session
	// with no history yields an empty slice, not an error.
	History(ctx context.Context, sessionID string) ([]Message, error)

	// Append adds messages to the end of the session's transcript.
	Append(ctx context.Context, sessionID string, msgs ...Message) error

	// Clear removes all messages for the session. Clearing an unknown
	// session is a no-op.
	Clear(ctx context.Context, sessionID string) error

	// Close releases backend resources.
	Close() error
}
