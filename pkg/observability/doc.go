// Package observability provides structured logging, Prometheus metrics
// and health probes for the organization service.
package observability
