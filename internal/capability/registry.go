// ABOUTME: Capability registry with discovery, allow-list activation, and dispatch
// ABOUTME: State is an immutable snapshot swapped atomically so readers never block

package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/llm"
)

// DefaultDispatchTimeout bounds a single operation invocation when no
// timeout is configured.
const DefaultDispatchTimeout = 30 * time.Second

// descriptor is a validated, immutable record of one discovered capability.
type descriptor struct {
	name        string
	description string
	schemas     []OperationSchema
	operations  map[string]Handler
	active      bool
}

// state is one immutable registry snapshot. Dispatch and Catalog read
// whichever snapshot was current when they started; Reload swaps in a
// fresh one without disturbing in-flight readers.
type state struct {
	descriptors []*descriptor // discovery order
	handlers    map[string]Handler
	catalog     []llm.Tool
	allowList   string
}

// Registry discovers capability modules from an explicit registration
// list, activates a subset per an allow-list, publishes their operation
// schemas, and dispatches invocations under a bounded timeout.
type Registry struct {
	modules []Module
	timeout time.Duration
	logger  *slog.Logger
	state   atomic.Pointer[state]
}

// Options configures a Registry.
type Options struct {
	// Modules is the explicit registration list, in discovery order.
	Modules []Module

	// AllowList optionally restricts activation to a comma-separated,
	// case-insensitive subset of capability names. Empty activates all.
	AllowList string

	// DispatchTimeout bounds each operation invocation.
	DispatchTimeout time.Duration

	Logger *slog.Logger
}

// NewRegistry discovers and activates the given modules. Modules failing
// validation are excluded with a warning; discovery never aborts because
// one module is bad.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.DispatchTimeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	r := &Registry{
		modules: opts.Modules,
		timeout: timeout,
		logger:  logger.With("component", "capability"),
	}
	r.Reload(opts.AllowList)
	return r
}

// Reload re-runs discovery and activation against the registration list
// and swaps in the resulting snapshot atomically. In-flight dispatches
// complete against the snapshot they started with.
func (r *Registry) Reload(allowList string) {
	r.state.Store(r.buildState(allowList))
}

func (r *Registry) buildState(allowList string) *state {
	s := &state{
		handlers:  make(map[string]Handler),
		allowList: allowList,
	}

	seen := make(map[string]bool)
	for _, mod := range r.modules {
		name := strings.ToLower(strings.TrimSpace(mod.Name()))
		if err := validateModule(name, mod); err != nil {
			r.logger.Warn("capability failed validation, skipping", "capability", mod.Name(), "error", err)
			continue
		}
		if seen[name] {
			r.logger.Warn("duplicate capability name, keeping first", "capability", name)
			continue
		}
		seen[name] = true
		s.descriptors = append(s.descriptors, &descriptor{
			name:        name,
			description: mod.Description(),
			schemas:     mod.Schemas(),
			operations:  mod.Operations(),
		})
	}

	allowed := parseAllowList(allowList)
	if allowed != nil {
		for name := range allowed {
			if !seen[name] {
				r.logger.Warn("allow-listed capability not discovered, ignoring", "capability", name)
			}
		}
	}

	for _, d := range s.descriptors {
		if allowed != nil && !allowed[d.name] {
			continue
		}
		d.active = true
		for _, schema := range d.schemas {
			s.catalog = append(s.catalog, llm.NewFunctionTool(schema.Name, schema.Description, schema.Parameters))
			s.handlers[schema.Name] = d.operations[schema.Name]
		}
	}

	r.logger.Info("capability registry built",
		"discovered", len(s.descriptors),
		"operations", len(s.handlers),
		"allow_list", allowList)
	return s
}

// parseAllowList splits a comma-separated allow-list into a lowercase
// set. A nil result means no filtering.
func parseAllowList(raw string) map[string]bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	allowed := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			allowed[name] = true
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

func validateModule(name string, mod Module) error {
	if name == "" {
		return fmt.Errorf("empty capability name")
	}
	schemas := mod.Schemas()
	if len(schemas) == 0 {
		return fmt.Errorf("no operation schemas")
	}
	ops := mod.Operations()
	if len(ops) == 0 {
		return fmt.Errorf("no operations")
	}
	for _, schema := range schemas {
		if schema.Name == "" {
			return fmt.Errorf("operation schema with empty name")
		}
		if ops[schema.Name] == nil {
			return fmt.Errorf("schema %q has no matching operation", schema.Name)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("precondition check: %w", err)
		}
	}
	return nil
}

// Catalog returns the active capabilities' operation schemas in
// discovery order, ready to advertise to the model.
func (r *Registry) Catalog() []llm.Tool {
	s := r.state.Load()
	out := make([]llm.Tool, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// AllowList returns the raw allow-list string the current snapshot was
// activated with.
func (r *Registry) AllowList() string {
	return r.state.Load().allowList
}

// Dispatch resolves an operation name and invokes its handler under the
// dispatch timeout. The returned error, when non-nil, is always a
// *DispatchError: handler errors, panics, and timeouts are captured at
// this boundary and never propagate past it.
func (r *Registry) Dispatch(ctx context.Context, operation string, args json.RawMessage) (string, error) {
	s := r.state.Load()
	handler, ok := s.handlers[operation]
	if !ok {
		r.logger.Warn("dispatch to unknown operation", "operation", operation)
		return "", &DispatchError{Kind: DispatchUnknownOperation, Operation: operation}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result   string
		err      error
		panicked bool
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("%v", rec), panicked: true}
			}
		}()
		result, err := handler(ctx, args)
		done <- outcome{result: result, err: err}
	}()

	start := time.Now()
	select {
	case out := <-done:
		if out.panicked {
			r.logger.Error("operation panicked", "operation", operation, "panic", out.err)
			return "", &DispatchError{Kind: DispatchPanicked, Operation: operation, Err: out.err}
		}
		if out.err != nil {
			r.logger.Warn("operation failed", "operation", operation, "error", out.err)
			return "", &DispatchError{Kind: DispatchFailed, Operation: operation, Err: out.err}
		}
		r.logger.Debug("operation completed", "operation", operation, "duration", time.Since(start))
		return out.result, nil
	case <-ctx.Done():
		kind := DispatchTimeout
		if ctx.Err() == context.Canceled {
			kind = DispatchCanceled
		}
		r.logger.Warn("operation did not complete", "operation", operation, "kind", kind, "after", time.Since(start))
		return "", &DispatchError{Kind: kind, Operation: operation, Err: ctx.Err()}
	}
}

// Info describes one capability for introspection endpoints.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Active      bool     `json:"active"`
	Operations  []string `json:"operations"`
}

// List returns discovery-ordered info for every discovered capability,
// active or not.
func (r *Registry) List() []Info {
	s := r.state.Load()
	out := make([]Info, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		ops := make([]string, 0, len(d.operations))
		for name := range d.operations {
			ops = append(ops, name)
		}
		sort.Strings(ops)
		out = append(out, Info{
			Name:        d.name,
			Description: d.description,
			Active:      d.active,
			Operations:  ops,
		})
	}
	return out
}

// ActiveNames returns the active capability names in discovery order.
func (r *Registry) ActiveNames() []string {
	s := r.state.Load()
	var names []string
	for _, d := range s.descriptors {
		if d.active {
			names = append(names, d.name)
		}
	}
	return names
}
