// Package middleware wraps session stores to protect conversation state at
// rest: slot masking and envelope encryption.
package middleware

import "github.com/MikaYeghi/agent-first/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain wraps store so that mws[0] sees every call first.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
