package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/drivehub/drivehub-auth-api/internal/handler"
	"github.com/drivehub/drivehub-auth-api/internal/mailer"
	"github.com/drivehub/drivehub-auth-api/internal/middleware"
	"github.com/drivehub/drivehub-auth-api/internal/repository"
	"github.com/drivehub/drivehub-auth-api/internal/service"
	"github.com/drivehub/drivehub-auth-api/pkg/cache"
	"github.com/drivehub/drivehub-auth-api/pkg/config"
	"github.com/drivehub/drivehub-auth-api/pkg/database"
	"github.com/drivehub/drivehub-auth-api/pkg/logger"
	corsmiddleware "github.com/drivehub/drivehub-auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/drivehub/drivehub-auth-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// The limiter falls back to the per-process implementation when redis is
	// unreachable, which reproduces the original soft guard.
	var limiter service.ResetLimiter
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, using in-process reset limiter", "error", err)
		limiter = service.NewMemoryResetLimiter(cfg.Reset.MaxAttempts, cfg.Reset.AttemptWindow)
	} else {
		defer redisClient.Close()
		limiter = service.NewRedisResetLimiter(redisClient, cfg.Reset.MaxAttempts, cfg.Reset.AttemptWindow)
	}

	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		logr.Sugar().Warnw("smtp unconfigured, reset codes will be logged")
		mail = mailer.NewLogMailer(logr)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	codec := service.NewTokenCodec(cfg.JWT)

	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	resetRepo := repository.NewResetRepository(db)

	authSvc := service.NewAuthService(userRepo, tokenRepo, resetRepo, codec, mail, limiter, metrics, validate, logr, service.AuthConfig{
		RefreshTokenTTL: cfg.JWT.RefreshExpiration,
		ResetCodeTTL:    cfg.Reset.CodeTTL,
		ResetTokenTTL:   cfg.Reset.TokenTTL,
	})
	adminSvc := service.NewAdminService(adminRepo, codec, metrics, validate, logr)

	// Expired ledger rows are dead weight once their token can no longer be
	// presented; sweep them hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if removed, err := tokenRepo.DeleteExpired(ctx, time.Now().UTC()); err != nil {
				logr.Sugar().Warnw("ledger sweep failed", "error", err)
			} else if removed > 0 {
				logr.Sugar().Infow("ledger sweep removed expired tokens", "count", removed)
			}
			cancel()
		}
	}()

	cookies := handler.NewCookieWriter(cfg)
	authHandler := handler.NewAuthHandler(authSvc, cookies)
	adminHandler := handler.NewAdminHandler(adminSvc, cookies)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler.RegisterRoutes(r, cfg.APIPrefix, authHandler, adminHandler, codec, cfg.Admin.OpsKey)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
