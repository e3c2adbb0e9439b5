package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/infrastructure/logger"
	"github.com/ltec/orderrelay/internal/interfaces/http/dto"
)

// BodyLimit caps submission bodies at maxBytes. Declared lengths over the cap
// are refused up front; chunked bodies are cut off by http.MaxBytesReader and
// the handler reports the resulting *http.MaxBytesError.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if size := c.Request.ContentLength; size > maxBytes {
			logger.GetGinLogger(c).Debug("submission body refused",
				zap.Int64("content_length", size),
				zap.Int64("limit", maxBytes),
			)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.SubmitFormResponse{Message: dto.MsgBodyTooLarge})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
