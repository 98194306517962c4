package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"healthcare-assistant/internal/app"
	"healthcare-assistant/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}

	// ---- Handler ----
	res, err := app.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Fatal("failed to build handler", zap.Error(err))
	}

	logger.Info("lambda starting",
		zap.String("store", cfg.Store),
		zap.String("directModelProvider", cfg.DirectModelProvider),
		zap.Duration("tierTimeout", cfg.TierTimeout))
	lambda.Start(res.Handler.Handle)
}
