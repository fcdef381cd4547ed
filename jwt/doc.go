// Package jwt encodes and verifies the signed access tokens that anchor a request to a
// server-side session.
//
// A token carries four claims (user_id, session_id, type, exp) and is signed with a key
// injected at construction. Decoding is pure: the signature is verified first, and only
// then is expiry checked, so forged tokens never reach the temporal checks.
//
// # What this package must NOT do
//
//   - Look up sessions or users (the authenticator does that).
//   - Read process-wide settings; every key and TTL is passed in [Config].
package jwt
