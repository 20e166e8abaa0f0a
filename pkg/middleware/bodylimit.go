package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit は受信リクエストボディの上限（50MiB）。
const DefaultBodyLimit int64 = 50 << 20

// BodyLimit はリクエストボディをlimitバイトに制限するGinミドルウェアを返す。
// Content-Lengthが上限を超える場合は即座に413を返す。
// Content-Lengthが不明な場合は読み取り時に http.MaxBytesError が返る。
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
