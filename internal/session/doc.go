// ABOUTME: Package documentation for session transcript persistence
// ABOUTME: Describes the Store contract and the three available backends

// Package session persists per-session conversation transcripts.
//
// A transcript is an append-ordered list of role-tagged messages:
// user turns, assistant turns (possibly carrying tool calls), and tool
// result messages correlated by tool call id. The Store interface hides
// the backend; three implementations are provided:
//
//   - MemoryStore: process-local map, the default. History is lost on
//     restart.
//   - SQLiteStore: durable local storage via modernc.org/sqlite with
//     automatic schema creation.
//   - RedisStore: shared storage for multi-process deployments, one
//     Redis list per session.
//
// All backends optionally trim each session to a trailing window of
// messages so long-lived sessions do not grow without bound.
package session
