package httpapi

import "github.com/gin-gonic/gin"

// cors mirrors every request's Origin back as Access-Control-Allow-Origin,
// generalizing the teacher's api.go forwardOrigin wrapper (which did the
// same thing for its two http.HandlerFuncs) into a gin middleware shared by
// every route on this router.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Range")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
