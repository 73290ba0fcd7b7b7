// Package rbac implements role-based authorization for organization
// operations.
//
// Roles form a total order (owner > admin > manager > member) and every
// privileged action declares the minimum role allowed to perform it. The
// Allowed check is a pure table lookup so it can be unit tested without a
// database and reused by any transport.
package rbac
