// Package store persists serialized configuration blobs and keeps them on
// the current version.
//
// A Store only loads and saves raw strings for a single Ref. Loader[T]
// layers a history.History[T] on top of a Store:
//   - Load parses whatever vintage is stored into T.
//   - Upgrade rewrites blobs that were parsed from an older version so later
//     loads take the fast path.
//   - Mutate applies a change to the current value, validates it and saves it
//     back with optimistic concurrency on the stored ETag.
//
// Lifecycle events are emitted through an optional activity.Emitter.
package store
