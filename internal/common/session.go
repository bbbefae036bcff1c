package common

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const sessionContextKey = "session_id"

// SessionMiddleware makes sure every request carries a session cookie holding a valid UUID
func SessionMiddleware(cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ""
			if cookie, err := ctx.Cookie(cookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				ctx.SetCookie(&http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx.Set(sessionContextKey, id)
			return next(ctx)
		}
	}
}

// SessionID returns the session id set by SessionMiddleware
func SessionID(ctx echo.Context) string {
	id, _ := ctx.Get(sessionContextKey).(string)
	return id
}
