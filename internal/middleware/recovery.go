package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RecoveryMiddleware 恢复中间件
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"panic":      err,
					"request_id": c.GetString("request_id"),
				}).Errorf("panic recovered\n%s", debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal server error"))
			}
		}()
		c.Next()
	}
}
