// Package session provides server-side session records and the stores that persist them.
//
// # Stores
//
// [RedisStore] keeps each session under its own key in a compact binary format (see
// [Encode]) with a key TTL matching the session's expiry, plus a per-user index set.
// [MemoryStore] is a sync.Map backed store for tests and single-process deployments.
// Both return [ErrNotFound] for unknown ids and wrap backend failures in
// [ErrStoreUnavailable].
//
// Lookups never mutate state: Get returns whatever is stored, including sessions past
// their expiry, so callers can distinguish "expired" from "revoked".
//
// [Sweeper] runs DeleteExpired on an interval.
//
// # What this package must NOT do
//
//   - Import the root package or jwt (no upward imports).
//   - Decide whether a request is authenticated.
package session
