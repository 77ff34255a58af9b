package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	VisitorHeader     = "X-Visitor-Id"
	visitorContextKey = "visitor_id"
)

// VisitorMiddleware tags each request with an anonymous visitor id. Browsers
// keep the id from the response header and send it back; this is not
// authentication, only session ownership.
func VisitorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			visitorID := c.Request().Header.Get(VisitorHeader)
			if _, err := uuid.Parse(visitorID); err != nil {
				visitorID = uuid.NewString()
			}
			c.Set(visitorContextKey, visitorID)
			c.Response().Header().Set(VisitorHeader, visitorID)
			return next(c)
		}
	}
}

func VisitorID(c echo.Context) string {
	id, _ := c.Get(visitorContextKey).(string)
	return id
}
