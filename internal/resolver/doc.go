// Package resolver merges a project's base configuration with per-network
// overrides into a single immutable ResolvedConfig. Resolution is pure: it
// performs no I/O and never mutates its inputs.
package resolver
