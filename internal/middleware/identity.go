package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Identity extracts the verified user identity injected by the upstream
// authentication layer (X-User-Id / X-User-Name headers, with query
// parameters as a fallback for browser websocket clients that cannot set
// headers). The core trusts these values and performs no credential
// verification itself.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := c.GetHeader("X-User-Id")
		userName := c.GetHeader("X-User-Name")
		if rawID == "" {
			rawID = c.Query("user_id")
			userName = c.Query("user_name")
		}

		if rawID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		userID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid identity"})
			return
		}
		if userName == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user name"})
			return
		}

		c.Set("userID", userID)
		c.Set("userName", userName)
		c.Next()
	}
}

// UserFromContext returns the identity set by Identity.
func UserFromContext(c *gin.Context) (int64, string) {
	userID, _ := c.Get("userID")
	userName, _ := c.Get("userName")
	id, _ := userID.(int64)
	name, _ := userName.(string)
	return id, name
}
