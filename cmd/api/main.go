package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"sketchlab/internal/config"
	"sketchlab/internal/db"
	"sketchlab/internal/email"
	apihttp "sketchlab/internal/http"
	"sketchlab/internal/oauth"
	"sketchlab/internal/repository"
	"sketchlab/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	accountRepo := repository.NewPgAccountRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	// Rate limiters por ruta: Redis cuando hay varios workers, memoria
	// como fallback local.
	limiters := apihttp.RouteLimiters{
		Login:  service.NewMemoryRateLimiter(15*time.Minute, 5),
		Create: service.NewMemoryRateLimiter(time.Hour, 3),
		Reset:  service.NewMemoryRateLimiter(time.Hour, 3),
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiters = apihttp.RouteLimiters{
				Login:  service.NewRedisRateLimiter(redisClient, 15*time.Minute, 5),
				Create: service.NewRedisRateLimiter(redisClient, time.Hour, 3),
				Reset:  service.NewRedisRateLimiter(redisClient, time.Hour, 3),
			}
		}
		cancel()
	}

	tokenSvc := service.NewTokenService(
		cfg.JWTSecret,
		time.Duration(cfg.JWTSessionTTLHours)*time.Hour,
		time.Duration(cfg.JWTResetTTLMinutes)*time.Minute,
	)

	accountSvc := service.NewAccountService(logger, accountRepo, emailSender)

	providers := map[string]oauth.Provider{}
	if cfg.GoogleClientID != "" {
		providers["google"] = oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	}
	if cfg.GithubClientID != "" {
		providers["github"] = oauth.NewGithubProvider(cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubCallbackURL)
	}

	authHandler := apihttp.NewAuthHandler(logger, accountSvc, tokenSvc, limiters.Login)
	oauthHandler := apihttp.NewOAuthHandler(logger, providers, accountSvc, tokenSvc, cfg.FrontendURL)
	router := apihttp.NewRouter(logger, authHandler, oauthHandler, tokenSvc, limiters, pool)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
