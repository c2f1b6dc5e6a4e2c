package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Prekzursil/event-link-sub001/internal/infra/app"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
)

// @title EventLink Credential Service API
// @version 1.0
// @description Account registration, login, session refresh, and password reset.
// @BasePath /api/v1
func main() {
	if err := run(); err != nil {
		log.Fatalf("credential service: %v", err)
	}
}

func run() error {
	// Missing .env is fine; the environment may carry everything already.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
