// Package session houses concrete implementations of core.SessionStore.
//
// The interface and the Session type live in core so agents and runners
// never depend on a storage backend; only the wiring layer decides which
// implementation to instantiate.
package session
