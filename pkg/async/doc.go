// Package async provides a panic-safe alternative to bare go
// statements for fire-and-forget background work, such as the
// reactive anomaly check that follows each tracked event.
package async
