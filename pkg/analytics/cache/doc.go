// Package cache memoizes analytics query results by content hash.
//
// Keys are a deterministic hash of the normalized query, so identical
// queries always hit the same entry regardless of how they were
// constructed. Entries expire after a configurable TTL; capacity is
// bounded, evicting the entry with the fewest cumulative hits (ties
// broken by oldest creation). A periodic sweep removes expired entries
// independently of Get/Set traffic.
//
// Two backends are provided: Memory for single-process deployments and
// Redis for multi-instance deployments sharing one cache. Cache
// operations never fail from the caller's perspective; a miss is a
// normal outcome. The one exception is Invalidate, which rejects a
// malformed pattern.
package cache
