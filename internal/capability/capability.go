// ABOUTME: The capability module contract and the dispatch error taxonomy
// ABOUTME: Modules expose named operations with JSON schemas for the model to call

package capability

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes one operation. Arguments arrive as the model-produced
// JSON payload; the returned string is relayed back to the model verbatim.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// OperationSchema describes one callable operation for the model's
// schema catalog. Parameters is a JSON Schema object.
type OperationSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Module is the contract every capability implements. A module registers
// one or more operations; its schemas and operations must agree on names.
type Module interface {
	// Name returns the capability's unique, case-insensitive identity.
	Name() string

	// Description summarizes what the capability does.
	Description() string

	// Schemas returns the operation schemas in a stable order.
	Schemas() []OperationSchema

	// Operations maps operation names to their handlers.
	Operations() map[string]Handler
}

// Validator is an optional extra precondition check a module may
// implement (e.g. required credentials present). A validation failure
// excludes the module from discovery without aborting it.
type Validator interface {
	Validate() error
}

// DispatchErrorKind classifies why a dispatch failed.
type DispatchErrorKind string

const (
	// DispatchUnknownOperation means the operation is not registered or
	// belongs to an inactive capability.
	DispatchUnknownOperation DispatchErrorKind = "unknown_operation"

	// DispatchTimeout means the handler exceeded the dispatch deadline.
	DispatchTimeout DispatchErrorKind = "timeout"

	// DispatchCanceled means the caller's context was canceled mid-invocation.
	DispatchCanceled DispatchErrorKind = "canceled"

	// DispatchFailed means the handler returned an error.
	DispatchFailed DispatchErrorKind = "failed"

	// DispatchPanicked means the handler panicked; the panic was recovered
	// at the dispatch boundary.
	DispatchPanicked DispatchErrorKind = "panicked"
)

// DispatchError is the only error type Dispatch returns. It never
// propagates as a panic or a raw handler error; callers relay
// ModelMessage to the model as the tool result.
type DispatchError struct {
	Kind      DispatchErrorKind
	Operation string
	Err       error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch %s (%s): %v", e.Operation, e.Kind, e.Err)
	}
	return fmt.Sprintf("dispatch %s (%s)", e.Operation, e.Kind)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// ModelMessage renders the failure as a tool result the model can react
// to, without leaking internal error detail.
func (e *DispatchError) ModelMessage() string {
	switch e.Kind {
	case DispatchUnknownOperation:
		return fmt.Sprintf("Error: operation %q is not available.", e.Operation)
	case DispatchTimeout:
		return fmt.Sprintf("Error: operation %q timed out before completing.", e.Operation)
	case DispatchCanceled:
		return fmt.Sprintf("Error: operation %q was canceled.", e.Operation)
	case DispatchPanicked:
		return fmt.Sprintf("Error: operation %q failed unexpectedly.", e.Operation)
	default:
		if e.Err != nil {
			return fmt.Sprintf("Error: operation %q failed: %v", e.Operation, e.Err)
		}
		return fmt.Sprintf("Error: operation %q failed.", e.Operation)
	}
}
