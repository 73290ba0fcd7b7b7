// Package middleware provides the HTTP middleware chain: request IDs,
// JWT authentication, structured request logging, Prometheus
// instrumentation and panic recovery.
package middleware
