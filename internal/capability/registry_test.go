// ABOUTME: Tests for registry discovery, activation, catalog, dispatch, and reload
// ABOUTME: Uses fake modules to exercise validation and error boundaries

package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeModule struct {
	name        string
	description string
	schemas     []OperationSchema
	operations  map[string]Handler
	validateErr error
}

func (m *fakeModule) Name() string                   { return m.name }
func (m *fakeModule) Description() string            { return m.description }
func (m *fakeModule) Schemas() []OperationSchema     { return m.schemas }
func (m *fakeModule) Operations() map[string]Handler { return m.operations }
func (m *fakeModule) Validate() error                { return m.validateErr }

func newFakeModule(name string, opNames ...string) *fakeModule {
	m := &fakeModule{
		name:        name,
		description: "fake " + name,
		operations:  make(map[string]Handler),
	}
	for _, op := range opNames {
		op := op
		m.schemas = append(m.schemas, OperationSchema{
			Name:        op,
			Description: "op " + op,
			Parameters:  json.RawMessage(`{"type":"object"}`),
		})
		m.operations[op] = func(ctx context.Context, args json.RawMessage) (string, error) {
			return "result from " + op, nil
		}
	}
	return m
}

func catalogNames(r *Registry) []string {
	var names []string
	for _, tool := range r.Catalog() {
		names = append(names, tool.Function.Name)
	}
	return names
}

func TestRegistry_DuplicateNameFirstWins(t *testing.T) {
	first := newFakeModule("weather", "get_weather")
	second := newFakeModule("weather", "get_weather_v2")

	r := NewRegistry(Options{Modules: []Module{first, second}})

	got := catalogNames(r)
	if len(got) != 1 || got[0] != "get_weather" {
		t.Errorf("catalog = %v, want [get_weather]", got)
	}
	if _, err := r.Dispatch(context.Background(), "get_weather_v2", nil); err == nil {
		t.Error("expected dispatch error for duplicate module's operation")
	}
}

func TestRegistry_AllowListMixedValidAndUnknown(t *testing.T) {
	r := NewRegistry(Options{
		Modules:   []Module{newFakeModule("alpha", "alpha_op"), newFakeModule("beta", "beta_op")},
		AllowList: "alpha, nonsense",
	})

	if got := r.ActiveNames(); len(got) != 1 || got[0] != "alpha" {
		t.Errorf("active = %v, want [alpha]", got)
	}
	got := catalogNames(r)
	if len(got) != 1 || got[0] != "alpha_op" {
		t.Errorf("catalog = %v, want [alpha_op]", got)
	}
}

func TestRegistry_AllowListCaseInsensitive(t *testing.T) {
	r := NewRegistry(Options{
		Modules:   []Module{newFakeModule("Weather", "get_weather")},
		AllowList: "WEATHER",
	})
	if got := r.ActiveNames(); len(got) != 1 || got[0] != "weather" {
		t.Errorf("active = %v, want [weather]", got)
	}
}

func TestRegistry_CatalogExcludesInactive(t *testing.T) {
	r := NewRegistry(Options{
		Modules: []Module{
			newFakeModule("alpha", "alpha_op"),
			newFakeModule("beta", "beta_op"),
			newFakeModule("gamma", "gamma_op"),
		},
		AllowList: "alpha,gamma",
	})

	got := catalogNames(r)
	want := []string{"alpha_op", "gamma_op"}
	if len(got) != len(want) {
		t.Fatalf("catalog = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("catalog[%d] = %q, want %q (discovery order)", i, got[i], want[i])
		}
	}

	_, err := r.Dispatch(context.Background(), "beta_op", json.RawMessage(`{}`))
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) || dispatchErr.Kind != DispatchUnknownOperation {
		t.Errorf("dispatch on inactive operation = %v, want unknown_operation", err)
	}
}

func TestRegistry_EmptyAllowListActivatesAll(t *testing.T) {
	r := NewRegistry(Options{
		Modules: []Module{newFakeModule("alpha", "alpha_op"), newFakeModule("beta", "beta_op")},
	})
	if got := r.ActiveNames(); len(got) != 2 {
		t.Errorf("active = %v, want both capabilities", got)
	}
}

func TestRegistry_ValidationFailuresSkipModule(t *testing.T) {
	noSchemas := &fakeModule{name: "empty", operations: map[string]Handler{
		"op": func(ctx context.Context, args json.RawMessage) (string, error) { return "", nil },
	}}
	badPrecondition := newFakeModule("needs-key", "keyed_op")
	badPrecondition.validateErr = fmt.Errorf("API key missing")
	mismatch := &fakeModule{
		name:    "mismatch",
		schemas: []OperationSchema{{Name: "declared_op"}},
		operations: map[string]Handler{
			"different_op": func(ctx context.Context, args json.RawMessage) (string, error) { return "", nil },
		},
	}
	good := newFakeModule("good", "good_op")

	r := NewRegistry(Options{Modules: []Module{noSchemas, badPrecondition, mismatch, good}})

	if got := r.ActiveNames(); len(got) != 1 || got[0] != "good" {
		t.Errorf("active = %v, want [good]", got)
	}
}

func TestDispatch_Success(t *testing.T) {
	mod := newFakeModule("echo", "echo_op")
	mod.operations["echo_op"] = func(ctx context.Context, args json.RawMessage) (string, error) {
		var payload map[string]string
		if err := json.Unmarshal(args, &payload); err != nil {
			return "", err
		}
		return "echo: " + payload["text"], nil
	}

	r := NewRegistry(Options{Modules: []Module{mod}})
	result, err := r.Dispatch(context.Background(), "echo_op", json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result != "echo: hi" {
		t.Errorf("result = %q", result)
	}
}

func TestDispatch_HandlerErrorBecomesDispatchError(t *testing.T) {
	mod := newFakeModule("flaky", "flaky_op")
	mod.operations["flaky_op"] = func(ctx context.Context, args json.RawMessage) (string, error) {
		return "", fmt.Errorf("upstream unavailable")
	}

	r := NewRegistry(Options{Modules: []Module{mod}})
	_, err := r.Dispatch(context.Background(), "flaky_op", nil)
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if dispatchErr.Kind != DispatchFailed {
		t.Errorf("kind = %q, want failed", dispatchErr.Kind)
	}
	if msg := dispatchErr.ModelMessage(); !strings.Contains(msg, "flaky_op") {
		t.Errorf("model message missing operation name: %q", msg)
	}
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	mod := newFakeModule("boom", "boom_op")
	mod.operations["boom_op"] = func(ctx context.Context, args json.RawMessage) (string, error) {
		panic("deliberate")
	}

	r := NewRegistry(Options{Modules: []Module{mod}})
	_, err := r.Dispatch(context.Background(), "boom_op", nil)
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) || dispatchErr.Kind != DispatchPanicked {
		t.Errorf("expected panicked DispatchError, got %v", err)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	mod := newFakeModule("slow", "slow_op")
	mod.operations["slow_op"] = func(ctx context.Context, args json.RawMessage) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	r := NewRegistry(Options{Modules: []Module{mod}, DispatchTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := r.Dispatch(context.Background(), "slow_op", nil)
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) || dispatchErr.Kind != DispatchTimeout {
		t.Fatalf("expected timeout DispatchError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("dispatch blocked for %v", elapsed)
	}
}

func TestReload_InFlightDispatchUsesOldSnapshot(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mod := newFakeModule("gated", "gated_op")
	mod.operations["gated_op"] = func(ctx context.Context, args json.RawMessage) (string, error) {
		close(started)
		<-release
		return "from old snapshot", nil
	}

	r := NewRegistry(Options{Modules: []Module{mod}, DispatchTimeout: 5 * time.Second})

	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := r.Dispatch(context.Background(), "gated_op", nil)
		resultCh <- result
		errCh <- err
	}()

	<-started
	// Deactivate everything while the dispatch is still running.
	r.Reload("none-such")
	close(release)

	if err := <-errCh; err != nil {
		t.Fatalf("in-flight dispatch failed after reload: %v", err)
	}
	if got := <-resultCh; got != "from old snapshot" {
		t.Errorf("result = %q", got)
	}

	// The next dispatch sees the post-reload snapshot.
	_, err := r.Dispatch(context.Background(), "gated_op", nil)
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) || dispatchErr.Kind != DispatchUnknownOperation {
		t.Errorf("post-reload dispatch = %v, want unknown_operation", err)
	}
}

func TestList_ReportsActiveFlag(t *testing.T) {
	r := NewRegistry(Options{
		Modules:   []Module{newFakeModule("alpha", "alpha_op"), newFakeModule("beta", "beta_op")},
		AllowList: "alpha",
	})

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 capabilities, got %d", len(infos))
	}
	if !infos[0].Active || infos[0].Name != "alpha" {
		t.Errorf("alpha info = %+v", infos[0])
	}
	if infos[1].Active || infos[1].Name != "beta" {
		t.Errorf("beta info = %+v", infos[1])
	}
	if len(infos[0].Operations) != 1 || infos[0].Operations[0] != "alpha_op" {
		t.Errorf("alpha operations = %v", infos[0].Operations)
	}
}
