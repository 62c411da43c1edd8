package handlers

import "github.com/gin-gonic/gin"

// Keys set by the user auth middleware.
const (
	userIDKey    = "userID"
	userEmailKey = "userEmail"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) string {
	return contextString(c, userIDKey)
}

func getUserEmail(c *gin.Context) string {
	return contextString(c, userEmailKey)
}

func contextString(c *gin.Context, key string) string {
	val, exists := c.Get(key)
	if !exists {
		return ""
	}
	if v, ok := val.(string); ok {
		return v
	}
	return ""
}
