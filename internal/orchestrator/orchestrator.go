// ABOUTME: Multi-turn orchestration loop driving model calls and tool dispatch
// ABOUTME: Serializes turns per session and bounds model round-trips per turn

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/llm"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/session"
)

// DefaultSystemPrompt frames the assistant for the model on every call.
// It is prepended per request and never persisted in the transcript.
const DefaultSystemPrompt = `You are a helpful chatbot that can assist users with:
- Information about cities (using Wikipedia)
- Weather information for cities
- Research topics and academic information
- Product searches from our database

Always greet users warmly and be helpful. Use the available functions when appropriate to provide accurate information.`

// LimitNotice is appended to a turn's answer when the round-trip cap is
// reached before the model produces a final answer.
const LimitNotice = "\n\n[Note: I reached my tool-use limit for this turn, so this answer may be incomplete.]"

// DefaultMaxRounds bounds model round-trips per turn when unconfigured.
const DefaultMaxRounds = 5

// maxConcurrentDispatches bounds parallel tool executions within one round.
const maxConcurrentDispatches = 4

// ModelClient is the slice of the LLM client the orchestrator needs.
type ModelClient interface {
	Complete(ctx context.Context, messages []llm.ChatMessage, tools []llm.Tool) (*llm.Completion, error)
}

// ToolDispatcher is the slice of the capability registry the orchestrator
// needs: the advertised catalog and operation dispatch.
type ToolDispatcher interface {
	Catalog() []llm.Tool
	Dispatch(ctx context.Context, operation string, args json.RawMessage) (string, error)
}

// Result is the outcome of one user turn.
type Result struct {
	// Content is the assistant's answer text.
	Content string

	// Rounds is the number of model round-trips the turn consumed.
	Rounds int

	// ToolCalls is the total number of tool invocations across rounds.
	ToolCalls int

	// LimitReached reports that the round-trip cap ended the turn before
	// the model produced a final answer.
	LimitReached bool
}

// Options configures an Orchestrator.
type Options struct {
	Model    ModelClient
	Registry ToolDispatcher
	Sessions session.Store

	// MaxRounds caps model round-trips per user turn.
	MaxRounds int

	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string

	Logger *slog.Logger
}

// Orchestrator owns the per-turn conversation state machine. Distinct
// sessions run concurrently; turns on the same session are serialized.
type Orchestrator struct {
	model        ModelClient
	registry     ToolDispatcher
	sessions     session.Store
	maxRounds    int
	systemPrompt string
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Orchestrator{
		model:        opts.Model,
		registry:     opts.Registry,
		sessions:     opts.Sessions,
		maxRounds:    maxRounds,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "orchestrator"),
		locks:        make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing turns for one session id.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// Chat runs one user turn: append the user message, then loop between
// model calls and tool dispatch until the model answers in plain content
// or the round-trip cap is hit.
func (o *Orchestrator) Chat(ctx context.Context, sessionID, userMessage string) (*Result, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	o.logger.Info("turn started", "session", sessionID)

	userMsg := session.Message{
		Role:      llm.RoleUser,
		Content:   userMessage,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.sessions.Append(ctx, sessionID, userMsg); err != nil {
		return nil, fmt.Errorf("appending user message: %w", err)
	}

	result := &Result{}
	for result.Rounds < o.maxRounds {
		history, err := o.sessions.History(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("loading transcript: %w", err)
		}

		// The catalog is re-read per round so a registry reload takes
		// effect on the next model call, never mid-call.
		completion, err := o.model.Complete(ctx, o.buildMessages(history), o.registry.Catalog())
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		result.Rounds++

		assistant := completion.Message
		if len(assistant.ToolCalls) == 0 {
			if err := o.sessions.Append(ctx, sessionID, session.Message{
				Role:      llm.RoleAssistant,
				Content:   assistant.Content,
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return nil, fmt.Errorf("appending assistant message: %w", err)
			}
			result.Content = assistant.Content
			o.logger.Info("turn completed",
				"session", sessionID,
				"rounds", result.Rounds,
				"tool_calls", result.ToolCalls,
				"duration", time.Since(start))
			return result, nil
		}

		if err := o.sessions.Append(ctx, sessionID, session.Message{
			Role:      llm.RoleAssistant,
			Content:   assistant.Content,
			ToolCalls: assistant.ToolCalls,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("appending assistant message: %w", err)
		}

		toolMsgs := o.dispatchAll(ctx, sessionID, assistant.ToolCalls)
		result.ToolCalls += len(toolMsgs)
		if err := o.sessions.Append(ctx, sessionID, toolMsgs...); err != nil {
			return nil, fmt.Errorf("appending tool messages: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Keep the most recent partial content for a cap-time answer.
		if assistant.Content != "" {
			result.Content = assistant.Content
		}
	}

	// Round-trip cap hit: close the turn with whatever partial content
	// exists plus a diagnostic notice instead of looping forever.
	result.LimitReached = true
	result.Content = result.Content + LimitNotice
	if err := o.sessions.Append(ctx, sessionID, session.Message{
		Role:      llm.RoleAssistant,
		Content:   result.Content,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("appending limit message: %w", err)
	}
	o.logger.Warn("turn hit round-trip cap",
		"session", sessionID,
		"rounds", result.Rounds,
		"tool_calls", result.ToolCalls)
	return result, nil
}

// buildMessages prepends the system prompt to the persisted transcript.
func (o *Orchestrator) buildMessages(history []session.Message) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: o.systemPrompt})
	for _, msg := range history {
		messages = append(messages, msg.ChatMessage())
	}
	return messages
}

// dispatchAll executes the requested tool calls concurrently and returns
// one tool-role message per call, in request order, each tagged with its
// call id. Every call gets exactly one reply; failures become model-visible
// text, never errors.
func (o *Orchestrator) dispatchAll(ctx context.Context, sessionID string, calls []llm.ToolCall) []session.Message {
	results := make([]string, len(calls))

	p := pool.New().WithMaxGoroutines(maxConcurrentDispatches)
	for i, call := range calls {
		i, call := i, call
		p.Go(func() {
			o.logger.Info("dispatching tool call",
				"session", sessionID,
				"operation", call.Function.Name,
				"call_id", call.ID)
			result, err := o.registry.Dispatch(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				var dispatchErr *capability.DispatchError
				if errors.As(err, &dispatchErr) {
					results[i] = dispatchErr.ModelMessage()
				} else {
					results[i] = fmt.Sprintf("Error: operation %q failed.", call.Function.Name)
				}
				return
			}
			results[i] = result
		})
	}
	p.Wait()

	now := time.Now().UTC()
	msgs := make([]session.Message, len(calls))
	for i, call := range calls {
		msgs[i] = session.Message{
			Role:       llm.RoleTool,
			Content:    results[i],
			ToolCallID: call.ID,
			CreatedAt:  now.Add(time.Duration(i) * time.Millisecond),
		}
	}
	return msgs
}

// History returns the session's transcript.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]session.Message, error) {
	return o.sessions.History(ctx, sessionID)
}

// ClearSession removes the session's transcript. Registry state is untouched.
func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) error {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	o.logger.Info("session cleared", "session", sessionID)
	return nil
}
