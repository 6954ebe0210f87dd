package httpmiddleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS answers browser preflights and sets the allow headers. An empty
// allowed list permits any origin as "*". Otherwise only listed origins are
// echoed back. Sessions travel in the Authorization header, so credentials
// are never allowed.
func CORS(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(set) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			c.Header("Vary", "Origin")
			if origin := c.Request.Header.Get("Origin"); origin != "" {
				if _, ok := set[origin]; ok {
					c.Header("Access-Control-Allow-Origin", origin)
				}
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
