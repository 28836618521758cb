// Package app assembles the relay from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"mentor-relay/handler"
	"mentor-relay/internal/config"
	"mentor-relay/internal/delivery"
	"mentor-relay/internal/integrations/openai"
	"mentor-relay/internal/integrations/paramstore"
	"mentor-relay/internal/integrations/twilio"
	"mentor-relay/internal/repository"
	"mentor-relay/internal/usecase"
)

// NewLogger returns a JSON or text slog logger at level.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	return cfg, nil
}

func NewStore(awsCfg aws.Config, table string) (*repository.Client, error) {
	return repository.New(awsdynamodb.NewFromConfig(awsCfg), table)
}

// EnsureTable creates the history table when it does not exist yet.
func EnsureTable(ctx context.Context, store *repository.Client) error {
	ok, err := store.Exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	slog.InfoContext(ctx, "creating history table", "table", store.TableName())
	return store.Create(ctx)
}

// NewHandler wires every relay dependency behind the webhook handler.
func NewHandler(ctx context.Context, cfg config.Config, awsCfg aws.Config) (*handler.Handler, error) {
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamPrefix)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(awsCfg, cfg.Table)
	if err != nil {
		return nil, err
	}
	if cfg.EnsureTable {
		if err := EnsureTable(ctx, store); err != nil {
			return nil, fmt.Errorf("app: ensure table: %w", err)
		}
	}

	twilioToken := cfg.TwilioToken
	if twilioToken == "" {
		if twilioToken, err = params.Secret(ctx, config.TwilioTokenParam); err != nil {
			return nil, fmt.Errorf("app: twilio auth token: %w", err)
		}
	}
	messages, err := twilio.NewFromCredentials(cfg.TwilioSID, twilioToken, cfg.ServerPhone)
	if err != nil {
		return nil, err
	}
	deliverer, err := delivery.New(messages, delivery.Config{
		ChunkSize:       cfg.ChunkSize,
		MaxPollAttempts: cfg.MaxPollAttempts,
		PollInterval:    cfg.PollInterval,
	})
	if err != nil {
		return nil, err
	}

	keyOpt := openai.WithAPIKey(cfg.OpenAIAPIKey)
	if cfg.OpenAIAPIKey == "" {
		keyOpt = openai.WithKeySource(func(ctx context.Context) (string, error) {
			return params.Secret(ctx, config.OpenAITokenParam)
		})
	}
	llm, err := openai.NewClient(keyOpt)
	if err != nil {
		return nil, err
	}
	generator, err := usecase.NewGenerator(llm, cfg.OpenAIModel, cfg.OpenAIMaxTokens)
	if err != nil {
		return nil, err
	}

	relay, err := usecase.NewRelayService(store, deliverer, generator, usecase.NewPersonaSelector(), cfg.MaxInteractions)
	if err != nil {
		return nil, err
	}

	var opts []handler.Option
	if cfg.WebhookURL != "" {
		opts = append(opts, handler.WithSignatureValidator(twilio.NewSignatureValidator(twilioToken, cfg.WebhookURL)))
	}
	return handler.NewHandler(relay, opts...)
}
