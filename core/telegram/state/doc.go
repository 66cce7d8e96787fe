// Package state keeps per-user conversation sessions in memory with an idle TTL.
// It is domain-agnostic: callers choose the session type.
package state
