// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing, plus the
// middleware stack shared by the API and health servers.
package httputil
