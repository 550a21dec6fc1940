// ABOUTME: Shared conformance tests for session store backends
// ABOUTME: Memory and SQLite run unconditionally; Redis runs when REDIS_ADDR is set

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/llm"
)

func newMemory(t *testing.T, limit int) Store {
	t.Helper()
	return NewMemoryStore(limit)
}

func newSQLite(t *testing.T, limit int) Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), limit)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newRedis(t *testing.T, limit int) Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	store, err := NewRedisStore(context.Background(), addr, limit)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func backends() map[string]func(t *testing.T, limit int) Store {
	return map[string]func(t *testing.T, limit int) Store{
		"memory": newMemory,
		"sqlite": newSQLite,
		"redis":  newRedis,
	}
}

func TestStore_AppendAndHistory(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, 0)
			ctx := context.Background()
			sessionID := fmt.Sprintf("test-append-%d", time.Now().UnixNano())
			defer store.Clear(ctx, sessionID)

			err := store.Append(ctx, sessionID,
				Message{Role: llm.RoleUser, Content: "what is the weather in Ankara?"},
				Message{Role: llm.RoleAssistant, Content: "", ToolCalls: []llm.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: llm.FunctionCall{
						Name:      "get_weather",
						Arguments: `{"city":"Ankara"}`,
					},
				}}},
				Message{Role: llm.RoleTool, Content: "22C, clear sky", ToolCallID: "call_1"},
			)
			if err != nil {
				t.Fatalf("Append: %v", err)
			}

			history, err := store.History(ctx, sessionID)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(history) != 3 {
				t.Fatalf("expected 3 messages, got %d", len(history))
			}
			if history[0].Role != llm.RoleUser {
				t.Errorf("first role = %q", history[0].Role)
			}
			if len(history[1].ToolCalls) != 1 || history[1].ToolCalls[0].ID != "call_1" {
				t.Errorf("tool calls not preserved: %+v", history[1].ToolCalls)
			}
			if history[1].ToolCalls[0].Function.Name != "get_weather" {
				t.Errorf("tool call function = %+v", history[1].ToolCalls[0].Function)
			}
			if history[2].ToolCallID != "call_1" {
				t.Errorf("tool_call_id = %q", history[2].ToolCallID)
			}
		})
	}
}

func TestStore_HistoryUnknownSessionIsEmpty(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, 0)
			history, err := store.History(context.Background(), "never-seen")
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(history) != 0 {
				t.Errorf("expected empty history, got %d messages", len(history))
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, 0)
			ctx := context.Background()
			sessionID := fmt.Sprintf("test-clear-%d", time.Now().UnixNano())

			if err := store.Append(ctx, sessionID, Message{Role: llm.RoleUser, Content: "hi"}); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := store.Clear(ctx, sessionID); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			history, err := store.History(ctx, sessionID)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(history) != 0 {
				t.Errorf("expected empty history after clear, got %d", len(history))
			}

			// Clearing an unknown session is a no-op.
			if err := store.Clear(ctx, "never-seen"); err != nil {
				t.Errorf("Clear unknown session: %v", err)
			}
		})
	}
}

func TestStore_SessionIsolation(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, 0)
			ctx := context.Background()
			a := fmt.Sprintf("iso-a-%d", time.Now().UnixNano())
			b := fmt.Sprintf("iso-b-%d", time.Now().UnixNano())
			defer store.Clear(ctx, a)
			defer store.Clear(ctx, b)

			if err := store.Append(ctx, a, Message{Role: llm.RoleUser, Content: "for a"}); err != nil {
				t.Fatalf("Append a: %v", err)
			}
			if err := store.Append(ctx, b, Message{Role: llm.RoleUser, Content: "for b"}); err != nil {
				t.Fatalf("Append b: %v", err)
			}

			historyA, err := store.History(ctx, a)
			if err != nil {
				t.Fatalf("History a: %v", err)
			}
			if len(historyA) != 1 || historyA[0].Content != "for a" {
				t.Errorf("session a history = %+v", historyA)
			}

			if err := store.Clear(ctx, a); err != nil {
				t.Fatalf("Clear a: %v", err)
			}
			historyB, err := store.History(ctx, b)
			if err != nil {
				t.Fatalf("History b: %v", err)
			}
			if len(historyB) != 1 {
				t.Errorf("clearing a affected b: %+v", historyB)
			}
		})
	}
}

func TestStore_HistoryLimitTrimsOldest(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, 3)
			ctx := context.Background()
			sessionID := fmt.Sprintf("test-limit-%d", time.Now().UnixNano())
			defer store.Clear(ctx, sessionID)

			base := time.Now().UTC().Truncate(time.Millisecond)
			for i := 0; i < 5; i++ {
				msg := Message{
					Role:      llm.RoleUser,
					Content:   fmt.Sprintf("message %d", i),
					CreatedAt: base.Add(time.Duration(i) * time.Second),
				}
				if err := store.Append(ctx, sessionID, msg); err != nil {
					t.Fatalf("Append %d: %v", i, err)
				}
			}

			history, err := store.History(ctx, sessionID)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if len(history) != 3 {
				t.Fatalf("expected 3 messages after trimming, got %d", len(history))
			}
			if history[0].Content != "message 2" || history[2].Content != "message 4" {
				t.Errorf("wrong window: first=%q last=%q", history[0].Content, history[2].Content)
			}
		})
	}
}

func TestMemoryStore_ClosedReturnsError(t *testing.T) {
	store := NewMemoryStore(0)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Append(context.Background(), "s", Message{Role: llm.RoleUser, Content: "hi"}); err != ErrClosed {
		t.Errorf("Append after close = %v, want ErrClosed", err)
	}
	if _, err := store.History(context.Background(), "s"); err != ErrClosed {
		t.Errorf("History after close = %v, want ErrClosed", err)
	}
}
