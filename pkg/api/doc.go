// Package api exposes the analytics engine over HTTP.
//
// All endpoints live under /api/v1 and speak JSON. Ingestion endpoints
// (events, metrics) accept single documents; query endpoints accept a
// query document and return the computed result. Cache administration
// is exposed under /api/v1/cache.
package api
