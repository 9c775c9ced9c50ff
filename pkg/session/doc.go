/*
Package session serializes the turns of each conversation and persists their
states.

A Manager pairs a ports.StateStore with a reference-counted per-session mutex
and, when several server instances share a store, a ports.DistributedLocker.
At most one turn per session is in flight; a state is saved only after its
turn committed.
*/
package session
