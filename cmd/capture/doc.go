// Package main hosts the content capture binary.
//
// Architecture overview:
//   - serve: internal/api.Server accepts capture submissions, reads records, re-queues failures and answers
//     search queries. Submissions are normalized, de-duplicated by normalized URL, persisted as pending and
//     published to the queue. With the in-memory queue the worker runs in the same process.
//   - worker: consumes queue deliveries and runs each capture through the pipeline (claim, scrape with strategy
//     fallback, materialize media, categorize, one final write). Failed outcomes are nacked for redelivery.
//   - process: runs one URL end to end against in-memory stores and prints the resulting record as JSON.
//
// Configuration comes from an optional YAML file plus CAPTURE_* environment overrides (for example
// CAPTURE_DB_BACKEND=postgres, CAPTURE_DB_DSN, CAPTURE_PUBSUB_BACKEND=pubsub, CAPTURE_LLM_API_KEY). Logs are zap,
// metrics are Prometheus on /metrics, and trace context rides on Pub/Sub message attributes.
package main
