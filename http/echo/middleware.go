// Package echo adapts extension activation to the Echo framework.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
)

// ContextKeyActive is the echo context key carrying the activation result.
const ContextKeyActive = "x402.extension.active"

// ExtensionMiddleware inspects the X-A2A-Extensions request header and
// echoes the x402 URI on the response when the extension is active for the
// request. With config.Required the extension is always active; a client
// that did not ask for it is rejected with 400 when rejectInactive is set.
func ExtensionMiddleware(config x402a2a.Config, rejectInactive bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			activated := x402a2a.CheckExtensionActivation(c.Request().Header)
			active := activated || config.Required

			if config.Required && !activated && rejectInactive {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"error": "this agent requires the x402 payment extension",
					"uri":   x402a2a.ExtensionURI,
				})
			}

			if active {
				x402a2a.AddExtensionActivationHeader(c.Response().Header())
			}
			c.Set(ContextKeyActive, active)
			return next(c)
		}
	}
}

// IsActive reports whether the extension is active for the current request.
func IsActive(c echo.Context) bool {
	result, _ := c.Get(ContextKeyActive).(bool)
	return result
}
