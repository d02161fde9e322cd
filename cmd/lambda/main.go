package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"handbook-chat/internal/app"
	"handbook-chat/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Parse()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger, app.SSMGetter)
	if err != nil {
		slog.Error("failed to build app", "err", err)
		os.Exit(1)
	}
	// Subscriptions live for the lifetime of a warm execution environment.
	go a.RunSweeper(ctx)

	lambda.Start(a.Handler.LambdaStream)
}
