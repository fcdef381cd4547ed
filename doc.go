// Package conduitauth implements JWT session authentication for a RealWorld
// (Conduit) style API: access token issuance, server-side sessions that make tokens
// revocable, and a dual-mode authentication contract for protected and public routes.
//
// A request is authenticated by [Authenticator.Authenticate], which maps an
// Authorization header to exactly one [Result]:
//
//   - [Authenticated] carries the user and session.
//   - [Anonymous] is returned in [ModeOptional] when no usable credential is present.
//   - [Rejected] carries a [Reason] in [ModeRequired].
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// conduitauth is the public surface. It exposes [Engine], [Builder], [Config], the
// store interfaces, and value types. Token signing lives in the jwt package, session
// persistence in the session package, and audit buffering under internal/.
//
// # What this package must NOT do
//
//   - Write to any store while authenticating a request.
//   - Log or audit token material.
//   - Reveal a rejection reason to HTTP clients.
package conduitauth
