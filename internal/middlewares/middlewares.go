package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/api/respond"
)

const userIDKey = "user_id"

// CORSMiddleware allows browser clients from any origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type tokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the caller id.
func AuthMiddleware(v tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.Verify(c.GetHeader("Authorization"))
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("path", c.FullPath()).Msg("unauthorized request")
			respond.Fail(c.Writer, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller id stored by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}

	id, ok := v.(uuid.UUID)
	return id, ok
}

// SetUserID stores the caller id, as AuthMiddleware does.
func SetUserID(c *gin.Context, id uuid.UUID) {
	c.Set(userIDKey, id)
}
