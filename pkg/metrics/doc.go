// Package metrics defines Prometheus metrics for the gateway, covering the
// HTTP surface, login and session lifecycle, upstream hosting API calls, and
// the audit delivery pipeline.
package metrics
