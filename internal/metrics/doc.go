// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Session lifecycle: sessions started, current state
//   - Recovery: reconnects scheduled, heartbeat timeouts, retry exhaustion
//   - Inbound traffic: messages delivered, duplicates suppressed, frames dropped
package metrics
