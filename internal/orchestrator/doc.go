// ABOUTME: Package documentation for the orchestration loop
// ABOUTME: Describes the per-turn state machine and its bounds

// Package orchestrator drives one conversation turn through repeated
// model calls and tool executions until the model yields a final answer.
//
// Each turn appends the user message to the session transcript, calls
// the model with the transcript plus the registry's schema catalog, and
// either returns the model's plain content or executes its requested
// tool calls. Tool results are appended as tool-role messages correlated
// by call id, then the loop repeats. A configured round-trip cap ends
// runaway turns with partial content and a diagnostic notice.
//
// Turns on the same session id are serialized with a per-session mutex;
// distinct sessions proceed concurrently. Tool calls within one round
// run on a bounded worker pool, with results reassembled into request
// order before they are appended.
package orchestrator
