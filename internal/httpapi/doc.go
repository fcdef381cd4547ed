// Package httpapi serves the account, session and profile endpoints of the
// Conduit API on a net/http ServeMux. Authentication goes through the middleware
// package; handlers read the identity from the request context.
package httpapi
