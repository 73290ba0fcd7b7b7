// Package orgs implements multi-tenant organization management: the
// organization lifecycle, role-based memberships, time-bound invitation
// tokens, shared templates and the analytics roll-up.
//
// Stores are stateless structs that run against a Querier, so the same
// code serves both direct reads on *sql.DB and transactional writes on
// *sql.Tx. OrganizationService owns transaction boundaries and is the
// only place business rules are enforced.
package orgs
