// Package engine executes declarative analytics queries.
//
// For each metric in the query the engine fetches the full time series
// from the metric source, applies the filter conjunction, restricts to
// the (resolved) time range, and buckets by granularity. Rows are then
// optionally grouped by dimension values, sorted by the requested
// order keys, and paginated.
//
// Execution is deterministic for a given snapshot of the source:
// re-running the same query against unchanged data yields identical
// rows. The engine never caches; memoization belongs to the caller
// (see pkg/analytics/cache).
package engine
