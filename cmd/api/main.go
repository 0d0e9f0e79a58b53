package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/jun/repocms/internal/app"
	"github.com/jun/repocms/internal/config"
	"github.com/jun/repocms/internal/logging"
)

func main() {
	application, log, err := setup(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	lambda.Start(application.HandleRequest)
}

// setup loads the configuration and builds the App. The returned logger is
// usable even when err is non-nil.
func setup(ctx context.Context) (*app.App, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, logging.New("error", true), fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.LogLevel, true)

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return nil, log, fmt.Errorf("initialize app: %w", err)
	}
	return application, log, nil
}
