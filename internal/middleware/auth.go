package middleware

import (
	"collaborative-workspace/auth"
	"collaborative-workspace/internal/errors"

	"github.com/gin-gonic/gin"
)

// TokenVerifier is satisfied by *auth.JWT.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type Auth struct {
	Tokens TokenVerifier
}

// AuthMiddleWare accepts a bearer header or a ?token= query and stores the
// caller's identity on the context. The display name comes from the token;
// a ?userName= query only fills it in when the token carries none.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := auth.ExtractToken(ctx)
		if token == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		identity, err := m.Tokens.Verify(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		userName := identity.Name
		if userName == "" {
			userName = ctx.Query("userName")
		}
		ctx.Set("user_id", identity.UserID)
		ctx.Set("user_email", identity.Email)
		ctx.Set("user_name", userName)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}
