// Package fiberauth adapts the request guard to Fiber handlers.
//
// Rejections produce the same 401 body as the net/http middleware. The identity of
// an authenticated request is available through Identity(c).
package fiberauth
