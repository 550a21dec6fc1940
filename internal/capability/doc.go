// ABOUTME: Package documentation for the capability registry
// ABOUTME: Describes discovery, activation, dispatch, and snapshot semantics

// Package capability defines the pluggable capability contract and the
// registry that manages it.
//
// A capability module exposes a name, a description, one or more
// operation schemas, and a matching map of operation handlers. The
// registry discovers modules from an explicit registration list,
// validates each (skipping failures without aborting discovery),
// applies an optional case-insensitive allow-list, and publishes the
// active operations' schemas in discovery order as the catalog
// advertised to the model.
//
// Dispatch resolves an operation name against the current snapshot and
// runs its handler under a bounded timeout. Handler errors, panics, and
// timeouts are all converted to a *DispatchError at this boundary; they
// never propagate to the orchestration loop as anything else.
//
// Registry state is an immutable snapshot held in an atomic pointer.
// Reload builds a fresh snapshot and swaps it in; in-flight dispatches
// finish against the snapshot they started with.
//
// Concrete capabilities live in the subpackages city, weather,
// research, and product.
package capability
