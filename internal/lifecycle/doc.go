// Package lifecycle owns all post and calendar state.
//
// The Controller is the single writer: every mutation of the event store
// and of the draft, published and failed lists goes through its mutex.
// Publisher calls run on the worker pool without the lock and re-enter the
// controller when they finish. Each mutation is persisted write-through by an
// ordered background queue; callers never wait for storage.
package lifecycle
