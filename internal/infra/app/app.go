// Package app assembles the credential service: configuration, storage,
// security primitives, use cases, and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/database"
	kafkainfra "github.com/Prekzursil/event-link-sub001/internal/infra/kafka"
	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
	"github.com/Prekzursil/event-link-sub001/internal/infra/mail"
	redisinfra "github.com/Prekzursil/event-link-sub001/internal/infra/redis"
	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
	"github.com/Prekzursil/event-link-sub001/internal/repository/memory"
	postgresrepo "github.com/Prekzursil/event-link-sub001/internal/repository/postgres"
	redisrepo "github.com/Prekzursil/event-link-sub001/internal/repository/redis"
	"github.com/Prekzursil/event-link-sub001/internal/transport/http/middleware"
	"github.com/Prekzursil/event-link-sub001/internal/transport/http/routes"
	"github.com/Prekzursil/event-link-sub001/internal/usecase"
)

const shutdownGrace = 10 * time.Second

// Application owns every long-lived resource of the service and knows how to
// release them, whether startup failed halfway or Run is winding down.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	log      *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	janitor  *usecase.TokenJanitor
}

// New wires the whole service together. Kafka, SMTP, and Redis are optional:
// when unconfigured they degrade to stubs (or an in-memory store) so a bare
// development checkout still boots against Postgres alone.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, log: log}

	if a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log); err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, cfg.Postgres, log); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		a.close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	tokenGenerator, err := security.NewTokenGenerator(keyProvider, keyProvider.SigningKID())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init token generator: %w", err)
	}
	jwksManager := security.NewJWTManager(keyProvider)

	repos := postgresrepo.NewRepositories(a.pool)

	// Rate limit attempts live in Redis when it is enabled; otherwise the
	// in-process store keeps a single instance functional.
	var (
		rateLimitStore port.RateLimitStore
		cacheChecker   routes.CacheChecker
	)
	if cfg.Redis.Enabled {
		if a.redis, err = redisinfra.NewClient(cfg.Redis, log); err != nil {
			a.close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		rateLimitStore = redisrepo.NewRateLimitRepository(a.redis.Client(), "eventlink:rate-limit", attemptRetention(cfg.RateLimit.WindowDuration))
		cacheChecker = a.redis
	} else {
		log.Info("redis disabled, using in-memory rate limit store")
		rateLimitStore = memory.NewRateLimitStore()
	}

	var eventPublisher port.EventPublisher
	eventPublisher, a.producer = newEventPublisher(cfg, log)

	mailer := newResetMailer(cfg.Mail, log)
	passwordValidator := security.DefaultPasswordValidator()

	authService, err := usecase.NewAuthService(cfg, repos.Users, repos.Tokens, eventPublisher, tokenGenerator, keyProvider, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	registrationService := usecase.NewRegistrationService(repos.Users, authService, eventPublisher, passwordValidator, log)
	userService := usecase.NewUserService(repos.Users)
	passwordResetService := usecase.NewPasswordResetService(cfg, repos.Users, repos.Tokens, repos.Transactor, rateLimitStore, eventPublisher, mailer, passwordValidator, log)

	if cfg.Janitor.Enabled {
		a.janitor = usecase.NewTokenJanitor(repos.Tokens, log, cfg.Janitor.Interval, cfg.Janitor.Retained)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		JWTManager:  jwksManager,
		Database:    a.pool,
		Cache:       cacheChecker,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			Users:         userService,
			PasswordReset: passwordResetService,
		},
	})

	return a, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails, then drains
// in-flight requests and releases every resource.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if a.janitor != nil {
		a.janitor.Start(janitorCtx)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, strconv.Itoa(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.log.Info("starting credential API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve http: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// close releases resources in reverse acquisition order. Any subset may be
// nil, so it doubles as the failure path for a half-built Application.
func (a *Application) close() {
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.log.Sync()
}

// attemptRetention sizes attempt-store entries to outlive the rate-limit
// window so a counter never expires mid-window.
func attemptRetention(window time.Duration) time.Duration {
	if window <= 0 {
		window = time.Minute
	}
	return window * 2
}

func newEventPublisher(cfg *config.AppConfig, log *zap.Logger) (port.EventPublisher, *kafkainfra.Producer) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("no kafka brokers configured, events go to the log only")
		return kafkainfra.NewStubPublisher(log), nil
	}
	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("kafka producer unavailable, events go to the log only", zap.Error(err))
		return kafkainfra.NewStubPublisher(log), nil
	}
	log.Info("kafka event publisher ready", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App), producer
}

func newResetMailer(cfg config.MailSettings, log *zap.Logger) port.ResetMailer {
	if cfg.Host == "" {
		log.Info("mail host not configured, using stub mailer")
		return mail.NewStubMailer(log)
	}
	return mail.NewSMTPMailer(cfg, log)
}
