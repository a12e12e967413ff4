package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sketchlab/internal/service"
)

// Nombres de ruta usados como prefijo de clave del rate limiter.
const (
	routeLogin  = "login"
	routeCreate = "create"
	routeReset  = "reset"
)

func rateKey(route string, c *gin.Context) string {
	return route + ":" + c.ClientIP()
}

// RateLimitMiddleware aplica un limite por IP a una ruta. Corre antes
// de cualquier logica de negocio; con limiter nil no gatea.
func RateLimitMiddleware(limiter service.RateLimiter, route, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(rateKey(route, c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": message})
			c.Abort()
			return
		}
		c.Next()
	}
}
