// Package gin adapts extension activation to the Gin framework.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	x402a2a "github.com/google-agentic-commerce/a2a-x402/go"
)

// ContextKeyActive is the gin context key carrying the activation result.
const ContextKeyActive = "x402.extension.active"

// ExtensionMiddleware inspects the X-A2A-Extensions request header and
// echoes the x402 URI on the response when the extension is active for the
// request. With config.Required the extension is always active; a client
// that did not ask for it is rejected with 400 when rejectInactive is set.
func ExtensionMiddleware(config x402a2a.Config, rejectInactive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		activated := x402a2a.CheckExtensionActivation(c.Request.Header)
		active := activated || config.Required

		if config.Required && !activated && rejectInactive {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "this agent requires the x402 payment extension",
				"uri":   x402a2a.ExtensionURI,
			})
			return
		}

		if active {
			x402a2a.AddExtensionActivationHeader(c.Writer.Header())
		}
		c.Set(ContextKeyActive, active)
		c.Next()
	}
}

// IsActive reports whether the extension is active for the current request.
func IsActive(c *gin.Context) bool {
	active, ok := c.Get(ContextKeyActive)
	if !ok {
		return false
	}
	result, _ := active.(bool)
	return result
}
