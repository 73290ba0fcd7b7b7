// Package audit records the append-only organization activity log.
//
// Entries are written from the service layer inside the same transaction
// as the mutation they describe, so the log never references a change
// that was rolled back. Reads are gated to owner/admin by the service.
package audit
