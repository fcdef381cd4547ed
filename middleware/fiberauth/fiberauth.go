package fiberauth

import (
	"context"

	"github.com/conduit-realworld/conduitauth"
	"github.com/gofiber/fiber/v2"
)

const (
	identityLocal = "conduitauth.identity"
	resultLocal   = "conduitauth.result"
)

// Authenticator is satisfied by *conduitauth.Engine and *conduitauth.Authenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, header string, mode conduitauth.Mode) conduitauth.Result
}

// Require rejects requests without a valid session with 401.
func Require(auth Authenticator) fiber.Handler {
	return Guard(auth, conduitauth.ModeRequired)
}

// Optional lets every request through and attaches an identity when one resolves.
func Optional(auth Authenticator) fiber.Handler {
	return Guard(auth, conduitauth.ModeOptional)
}

// Guard authenticates the request once and stores the outcome in fiber locals. The
// identity is also attached to the user context, so handlers that pass
// c.UserContext() on can use conduitauth.IdentityFromContext.
func Guard(auth Authenticator, mode conduitauth.Mode) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := conduitauth.WithClientIP(c.UserContext(), c.IP())

		var res conduitauth.Result
		if auth != nil {
			res = auth.Authenticate(ctx, c.Get(fiber.HeaderAuthorization), mode)
		}
		if res == nil {
			res = unresolved(mode)
		}

		switch res := res.(type) {
		case conduitauth.Authenticated:
			c.Locals(identityLocal, res.Identity)
			ctx = conduitauth.WithIdentity(ctx, res.Identity)
		case conduitauth.Anonymous:
		default:
			return Unauthorized(c)
		}

		c.Locals(resultLocal, res)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// Identity returns the identity stored by Guard.
func Identity(c *fiber.Ctx) (conduitauth.Identity, bool) {
	id, ok := c.Locals(identityLocal).(conduitauth.Identity)
	return id, ok
}

// Result returns the Result Guard produced for this request.
func Result(c *fiber.Ctx) (conduitauth.Result, bool) {
	res, ok := c.Locals(resultLocal).(conduitauth.Result)
	return res, ok
}

// Unauthorized writes the 401 response used for every rejection.
func Unauthorized(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Token")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"errors": fiber.Map{"body": []string{"unauthorized"}},
	})
}

// unresolved stands in for a missing Result: anonymous when authentication is
// optional, unavailable otherwise.
func unresolved(mode conduitauth.Mode) conduitauth.Result {
	if mode == conduitauth.ModeOptional {
		return conduitauth.Anonymous{}
	}
	return conduitauth.Rejected{Reason: conduitauth.ReasonUnavailable}
}
