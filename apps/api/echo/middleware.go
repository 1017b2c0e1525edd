package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/pmajay/core/user"
)

// userMiddleware loads the authenticated user into the context; it runs after the JWT middleware.
func userMiddleware(auth *authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := auth.contextUser(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// permissionMiddleware lets through users holding any of perms.
func permissionMiddleware(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr := actor(ctx)
			for _, perm := range perms {
				if usr.HasPermission(perm) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// actor returns the user loaded by userMiddleware.
func actor(ctx echo.Context) user.User {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr
}

// authed returns the middleware chain of endpoints requiring a logged in user.
func authed(jwt echo.MiddlewareFunc, auth *authenticator) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{jwt, userMiddleware(auth)}
}
