// Package session provides the session record model, its lifecycle state
// machine, and Redis-backed persistence for the refresh hot path.
//
// # Lifecycle
//
// A record is created active and only ever moves active→expired (refresh
// window elapsed) or active→revoked (explicit security event). Both are
// terminal; a new login creates a new record rather than resurrecting an
// old one.
//
// # Atomicity
//
// [Store.ApplyRefresh] is a single check-and-write: existence, refresh
// token equality, active status, and refresh-window checks happen inside
// the same Lua script that applies the update, so two concurrent refreshes
// against one session cannot interleave and lose an update.
//
// # Architecture boundaries
//
// This package owns persistence and lifecycle only. It does not interpret
// signed tokens or enforce authentication policy — those belong to the
// Engine.
package session
