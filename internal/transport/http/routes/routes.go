package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
	"github.com/Prekzursil/event-link-sub001/internal/transport/http/handlers"
	"github.com/Prekzursil/event-link-sub001/internal/transport/http/middleware"
	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	Users         *usecase.UserService
	PasswordReset *usecase.PasswordResetService
}

// Dependencies carries everything Register needs to assemble the engine.
// Nil members degrade their feature: no JWTManager means no JWKS route, no
// checkers means readiness reports nothing to probe.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Services    ServiceSet
	RateLimiter *middleware.RateLimiter
	JWTManager  *security.JWTManager
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker is the readiness probe for the relational store.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker is the readiness probe for the cache backend.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register builds the Gin engine: global middleware, operational endpoints,
// and the versioned API group.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestScope(),
		middleware.CORS(deps.Config.CORS.AllowedOrigins),
		middleware.AccessLog(deps.Logger),
	)
	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else if deps.Logger != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	healthHandler := handlers.NewHealthHandler(readinessChecks(deps)...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.JWTManager != nil {
		jwksHandler := handlers.NewJWKSHandler(deps.JWTManager)
		r.GET("/.well-known/jwks.json", jwksHandler.Keys)
	}

	api := r.Group("/api/v1")
	{
		isDev := deps.Config.App.Env == "development"

		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
		api.POST("/register", withRateLimit(deps, "register_ip", deps.Config.RateLimit.RegisterMaxAttempts, registrationHandler.Register)...)

		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		api.POST("/login", withRateLimit(deps, "login_ip", deps.Config.RateLimit.LoginMaxAttempts, authHandler.Login)...)

		tokenHandler := handlers.NewTokenHandler(deps.Services.Auth)
		api.POST("/token/refresh", withRateLimit(deps, "token_refresh_ip", deps.Config.RateLimit.RefreshMaxAttempts, tokenHandler.RefreshToken)...)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, isDev)

		// The IP limit here is a perimeter guard; the per-account limit
		// lives in the password reset service itself.
		resetGroup := api.Group("/password-reset")
		resetGroup.POST("/request", withRateLimit(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, passwordHandler.RequestReset)...)
		resetGroup.POST("/confirm", passwordHandler.ConfirmReset)

		userHandler := handlers.NewUserHandler(deps.Services.Users)
		api.GET("/me", middleware.RequireAuth(deps.Services.Auth), userHandler.Me)
	}

	handlers.RegisterSwagger(r)

	return r
}

// readinessChecks wires the optional dependency probes into the health
// handler.
func readinessChecks(deps Dependencies) []handlers.HealthOption {
	options := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		options = append(options, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		options = append(options, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	return options
}

// withRateLimit prepends an IP-scoped sliding-window limit to the handler chain
// when a limiter is configured and the per-route limit is positive.
func withRateLimit(deps Dependencies, name string, limit int, handler gin.HandlerFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return []gin.HandlerFunc{handler}
	}
	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	limitRule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(limitRule), handler}
}
