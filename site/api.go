package site

import (
	"github.com/goliatone/go-router"

	"github.com/goliatone/r6-tools/middleware/jwtware"
)

// SessionInfoPath reports the owner of a bearer access token
const SessionInfoPath = "/api/session"

// RegisterAPI mounts the JSON routes. bearer must verify the access token,
// see jwtware.New.
func RegisterAPI[T any](app router.Router[T], bearer router.MiddlewareFunc) {
	app.Get(SessionInfoPath, SessionInfo, bearer).
		SetName("api.session")
}

// SessionInfo returns the subject and the claims of the verified token
func SessionInfo(ctx router.Context) error {
	subject, ok := jwtware.SubjectFromRouter(ctx)
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "missing access token",
		})
	}

	out := map[string]any{
		"user_id": subject,
	}

	if claims, ok := jwtware.ClaimsFromRouter(ctx); ok {
		if claims.Email != "" {
			out["email"] = claims.Email
		}
		if claims.Role != "" {
			out["role"] = claims.Role
		}
		if claims.ExpiresAt != nil {
			out["expires_at"] = claims.ExpiresAt.Unix()
		}
	}

	return ctx.JSON(router.StatusOK, out)
}
