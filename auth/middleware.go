package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ExtractToken reads a bearer token from the Authorization header, falling
// back to the ?token= query used by browser WebSocket handshakes.
func ExtractToken(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ctx.Query("token")
}
