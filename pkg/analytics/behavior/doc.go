// Package behavior computes per-user and per-organization behavioral
// summaries from the event source: activity totals, event-type
// histograms, session counts, device and location fingerprints, usage
// histograms, and a 0-100 engagement score weighing activity
// frequency, recency, and event-type diversity.
package behavior
