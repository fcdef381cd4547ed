package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/conduit-realworld/conduitauth"
)

// Authenticator is satisfied by *conduitauth.Engine and *conduitauth.Authenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, header string, mode conduitauth.Mode) conduitauth.Result
}

type authResultContextKey struct{}

// ResultFromContext returns the Result the guard produced for this request.
func ResultFromContext(ctx context.Context) (conduitauth.Result, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(conduitauth.Result)
	return res, ok
}

// unauthorizedBody is identical for every rejection reason.
const unauthorizedBody = `{"errors":{"body":["unauthorized"]}}` + "\n"

// Guard authenticates each request once before next runs. Authenticated requests
// carry the identity in their context; anonymous requests carry none; rejected
// requests get a uniform 401 and never reach next.
func Guard(auth Authenticator, mode conduitauth.Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if ip := ClientIP(r); ip != "" {
				ctx = conduitauth.WithClientIP(ctx, ip)
			}

			var res conduitauth.Result
			if auth != nil {
				res = auth.Authenticate(ctx, r.Header.Get("Authorization"), mode)
			}
			if res == nil {
				res = unresolved(mode)
			}

			switch res := res.(type) {
			case conduitauth.Authenticated:
				ctx = conduitauth.WithIdentity(ctx, res.Identity)
			case conduitauth.Anonymous:
			default:
				WriteUnauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteUnauthorized writes the 401 response used for every rejection.
func WriteUnauthorized(w http.ResponseWriter) {
	h := w.Header()
	h.Set("WWW-Authenticate", "Token")
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

// ClientIP returns the host part of r.RemoteAddr, or RemoteAddr itself when it
// has no port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// unresolved stands in for a missing Result: anonymous when authentication is
// optional, unavailable otherwise.
func unresolved(mode conduitauth.Mode) conduitauth.Result {
	if mode == conduitauth.ModeOptional {
		return conduitauth.Anonymous{}
	}
	return conduitauth.Rejected{Reason: conduitauth.ReasonUnavailable}
}
