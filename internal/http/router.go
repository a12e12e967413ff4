package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"sketchlab/internal/db"
	"sketchlab/internal/domain"
	"sketchlab/internal/service"
)

// RouteLimiters agrupa los rate limiters por ruta. Cualquiera puede
// ser nil (sin gate).
type RouteLimiters struct {
	Login  service.RateLimiter
	Create service.RateLimiter
	Reset  service.RateLimiter
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	oauthH *OAuthHandler,
	tokenSvc *service.TokenService,
	limiters RouteLimiters,
	pool *pgxpool.Pool,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	auth := r.Group("/auth")
	auth.POST("/create",
		RateLimitMiddleware(limiters.Create, routeCreate, "Too many accounts created, please try again later"),
		authH.Register)
	auth.POST("/login",
		RateLimitMiddleware(limiters.Login, routeLogin, "Too many login attempts, please try again in 15 minutes"),
		authH.Login)
	auth.POST("/forgot-password",
		RateLimitMiddleware(limiters.Reset, routeReset, "Too many requests, please try again later"),
		authH.ForgotPassword)
	auth.POST("/verify-reset-code", authH.VerifyResetCode)
	auth.POST("/reset-password", authH.ResetPassword)
	auth.GET("/me", AuthMiddleware(tokenSvc), authH.Me)

	auth.GET("/google", oauthH.Begin(domain.ProviderGoogle))
	auth.GET("/google/callback", oauthH.Callback(domain.ProviderGoogle))
	auth.GET("/github", oauthH.Begin(domain.ProviderGithub))
	auth.GET("/github/callback", oauthH.Callback(domain.ProviderGithub))

	users := r.Group("/users")
	users.GET("/profile", AuthMiddleware(tokenSvc), authH.Profile)

	r.GET("/healthz", func(c *gin.Context) {
		if pool != nil {
			if err := db.Ping(c.Request.Context(), pool); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
