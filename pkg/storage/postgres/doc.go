// Package postgres provides PostgreSQL-backed implementations of the
// analytics collaborator interfaces: the event source/sink, the metric
// source/sink, and the insight creator.
//
// The metric source keeps a short-TTL LRU of full per-metric series so
// repeated analysis over the same metric does not hammer the database;
// recording a point invalidates the metric's cached series.
package postgres
