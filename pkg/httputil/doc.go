// Package httputil provides shared JSON request and response helpers for
// HTTP handlers.
package httputil
