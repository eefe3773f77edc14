// Package service composes the analytics sub-components behind one
// facade. All wiring is explicit dependency injection at construction
// time: the caller supplies the data sources, sinks, cache backend,
// insight creator, and notifier, and the facade builds the analyzers
// on top. Query results flow through the cache; everything else is a
// thin pass-through to the owning component.
package service
