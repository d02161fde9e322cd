// Package app assembles the chat proxy from configuration. Both the HTTP
// server and the Lambda entrypoint build their handler here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"handbook-chat/handler"
	"handbook-chat/internal/config"
	"handbook-chat/internal/integrations/gemini"
	"handbook-chat/internal/integrations/paramstore"
	"handbook-chat/internal/metrics"
	"handbook-chat/internal/repository"
	"handbook-chat/internal/usecase"
)

// GetterFactory builds the parameter store client used to resolve the API
// key when GEMINI_API_KEY_PARAM is set.
type GetterFactory func(ctx context.Context) (paramstore.Getter, error)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Handler *handler.Handler
	Store   *repository.SubscriptionStore
	Metrics *metrics.Recorder
}

// NewLogger returns the JSON logger used by every entrypoint.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// SSMGetter loads the default AWS configuration and returns a parameter
// store client.
func SSMGetter(ctx context.Context) (paramstore.Getter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return paramstore.New(awsssm.NewFromConfig(awsCfg))
}

// New wires the application. A missing or unresolvable API key is not
// fatal: generation answers 503 while canned replies and subscriptions keep
// working. A nil getters falls back to SSMGetter.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, getters GetterFactory) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if getters == nil {
		getters = SSMGetter
	}

	persona, err := usecase.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	llm, err := newUpstream(ctx, cfg, logger, getters)
	if err != nil {
		return nil, err
	}

	gen, err := usecase.NewGenerateService(persona, llm, cfg.MaxPromptLength, logger)
	if err != nil {
		return nil, fmt.Errorf("app: create generate service: %w", err)
	}

	store := repository.NewSubscriptionStore(nil)
	subs, err := usecase.NewSubscriptionService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("app: create subscription service: %w", err)
	}

	rec := metrics.New()
	h, err := handler.NewHandler(gen, subs, handler.Options{
		Logger:         logger,
		Metrics:        rec,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}

	return &App{Config: cfg, Logger: logger, Handler: h, Store: store, Metrics: rec}, nil
}

// RunSweeper blocks, removing lapsed subscriptions on the configured
// interval, until ctx is done. With no interval it returns at once.
func (a *App) RunSweeper(ctx context.Context) {
	a.Store.RunSweeper(ctx, a.Config.SubscriptionSweepInterval, a.Logger)
}

// newUpstream returns nil, with no error, when generation must stay
// disabled.
func newUpstream(ctx context.Context, cfg *config.Config, logger *slog.Logger, getters GetterFactory) (usecase.LLMStreamer, error) {
	key := cfg.GeminiAPIKey
	if key == "" && cfg.GeminiAPIKeyParam != "" {
		resolved, err := resolveKey(ctx, cfg.GeminiAPIKeyParam, getters)
		if err != nil {
			logger.Warn("failed to resolve API key from parameter store; generate disabled",
				"param", cfg.GeminiAPIKeyParam, "err", err)
			return nil, nil
		}
		key = resolved
	}
	if key == "" {
		logger.Warn("API key not configured; generate disabled")
		return nil, nil
	}

	client, err := gemini.NewClient(ctx, key,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithModel(cfg.GeminiModel),
		gemini.WithTimeout(cfg.UpstreamTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create gemini client: %w", err)
	}
	logger.Info("upstream configured", "model", client.Model())
	return client, nil
}

func resolveKey(ctx context.Context, name string, getters GetterFactory) (string, error) {
	g, err := getters(ctx)
	if err != nil {
		return "", err
	}
	return paramstore.ResolveSecret(ctx, g, name)
}
