// Package calendar holds the in-memory event store and the placement engine.
//
// Events are bucketed by DateKey ("{year}-{month0}-{day}") and kept sorted by
// their "HH:MM" time. The store itself is not goroutine-safe: the lifecycle
// controller is its only writer and serializes every call.
package calendar
