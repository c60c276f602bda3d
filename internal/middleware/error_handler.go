package middleware

import (
	apiError "collaborative-workspace/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ErrorHandler renders the last error attached with c.Error as {"error": msg}.
func ErrorHandler(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		if len(c.Errors) == 0 {
			return
		}
		appErr := apiError.As(c.Errors.Last().Err)

		if appErr.Code >= 500 {
			log.Error().Err(appErr.Err).Str("path", c.FullPath()).Msg(appErr.Message)
		} else {
			log.Info().Err(appErr.Err).Str("path", c.FullPath()).Int("status", appErr.Code).Msg(appErr.Message)
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
