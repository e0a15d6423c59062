// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - POST /v1/captures submits a URL for capture.
//   - GET /v1/captures/{id} returns a capture record.
//   - POST /v1/captures/{id}/retry re-queues a failed capture.
//   - GET /v1/search runs a scored free-text search over completed captures.
//   - GET /healthz, /readyz for probes and /metrics for Prometheus scraping.
package api
