// Package middleware exposes net/http guards for the two authentication modes.
//
// # Guards
//
//   - [Require]: ModeRequired. Rejected requests get 401 and never reach the handler.
//   - [Optional]: ModeOptional. Every request reaches the handler, with or without an identity.
//   - [Guard]: the shared implementation, parameterized by mode.
//
// Each guard reads the Authorization header, calls Authenticate exactly once, and
// stores the identity with conduitauth.WithIdentity.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Authenticate calls. It does not
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access session or user stores.
//   - Send the rejection reason to the client.
package middleware
