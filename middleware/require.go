package middleware

import (
	"net/http"

	"github.com/conduit-realworld/conduitauth"
)

// Require rejects requests without a valid session with 401.
func Require(auth Authenticator) func(http.Handler) http.Handler {
	return Guard(auth, conduitauth.ModeRequired)
}

// Optional lets every request through and attaches an identity when one resolves.
func Optional(auth Authenticator) func(http.Handler) http.Handler {
	return Guard(auth, conduitauth.ModeOptional)
}
