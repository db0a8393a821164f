// Package access resolves entity-level permission grants.
//
// A grant scopes a role to a set of domains and a set of entities on one
// automation host. Either axis may be nil, meaning unrestricted along that
// axis. An entity is permitted when at least one grant permits both its
// domain and its identifier; grants never subtract from each other.
package access
