package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/ai/anthropic"
	"github.com/spigell/shortlister/internal/ai/gemini"
	"github.com/spigell/shortlister/internal/ai/openai"
	"github.com/spigell/shortlister/internal/airtable"
	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/pipeline"
	"github.com/spigell/shortlister/internal/secrets"
	"github.com/spigell/shortlister/internal/shortlist"
	"github.com/spigell/shortlister/internal/store"
)

// session is everything a command needs; close releases the store.
type session struct {
	config    *Config
	logger    *zap.Logger
	processor *pipeline.Processor
	close     func()
}

// setup builds the logger, the config and the processor. Configuration errors are fatal.
func setup(ctx context.Context, withLLM bool) *session {
	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Info("starting the shortlister",
		zap.String("version", currentVersion()),
		zap.String("backend", config.Backend),
	)

	s, closeStore, err := newStore(ctx, config, log)
	if err != nil {
		log.Fatal("creating a store", zap.Error(err), zap.String("backend", config.Backend))
	}

	evaluator := shortlist.NewEvaluator(config.Shortlist, log)
	for _, status := range evaluator.Describe() {
		fields := []zap.Field{zap.String("name", status.Name)}
		if status.Reason != "" {
			fields = append(fields, zap.String("reason", status.Reason))
		}
		for key, value := range status.Details {
			fields = append(fields, zap.String(key, value))
		}
		log.Info("shortlist condition", fields...)
	}

	deps := pipeline.Deps{
		Store:     s,
		Schema:    config.Schema(),
		Evaluator: evaluator,
		Logger:    log,
	}

	if withLLM {
		provider, err := newProvider(ctx, config.LLM)
		if err != nil {
			log.Fatal("creating an llm provider", zap.Error(err), zap.String("provider", config.LLM.Provider))
		}

		if provider == nil {
			log.Warn("llm assessment disabled", zap.String("provider", config.LLM.Provider))
		} else {
			gateway, err := ai.NewGateway(provider, ai.RetryPolicy{
				MaxAttempts: config.LLM.RetryMax,
				BaseDelay:   time.Duration(config.LLM.RetryBase * float64(time.Second)),
			}, log)
			if err != nil {
				log.Fatal("creating an llm gateway", zap.Error(err))
			}
			deps.Assessor = gateway
			active := gateway.Provider()
			logger.ForProvider(log, active.Name(), active.Model()).Info("llm assessment enabled",
				zap.Int("retry_max", config.LLM.RetryMax),
				zap.Float64("retry_base_seconds", config.LLM.RetryBase),
			)
		}
	}

	processor, err := pipeline.New(deps)
	if err != nil {
		log.Fatal("creating a processor", zap.Error(err))
	}

	return &session{
		config:    config,
		logger:    log,
		processor: processor,
		close: func() {
			if err := closeStore(); err != nil {
				log.Warn("closing the store", zap.Error(err))
			}
			_ = log.Sync()
		},
	}
}

func newStore(ctx context.Context, config *Config, log *zap.Logger) (store.Store, func() error, error) {
	switch config.Backend {
	case backendSQLite:
		db, err := store.OpenSQLite(config.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewSQLite(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, db.Close, nil
	default:
		token, err := secrets.Load(secrets.Source{
			Name:  "airtable api key",
			Value: config.Airtable.APIKey,
			File:  config.Airtable.APIKeyFile,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w (set AIRTABLE_API_KEY or AIRTABLE_API_KEY_FILE)", err)
		}

		client, err := airtable.New(log, token, config.Airtable.BaseID)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	}
}

// newProvider returns nil when the assessment is disabled.
func newProvider(ctx context.Context, config LLMConfig) (ai.Provider, error) {
	switch config.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		key, err := providerKey("openai", "OPENAI_API_KEY", config.OpenAI)
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			APIKey:    key,
			Model:     config.OpenAI.Model,
			BaseURL:   config.OpenAI.BaseURL,
			MaxTokens: config.MaxOutputTokens,
		})
	case "anthropic":
		key, err := providerKey("anthropic", "ANTHROPIC_API_KEY", config.Anthropic)
		if err != nil {
			return nil, err
		}
		return anthropic.New(anthropic.Config{
			APIKey:    key,
			Model:     config.Anthropic.Model,
			BaseURL:   config.Anthropic.BaseURL,
			MaxTokens: config.MaxOutputTokens,
		})
	case "google", "gemini":
		key, err := providerKey("gemini", "GEMINI_API_KEY", config.Gemini)
		if err != nil {
			return nil, err
		}
		return gemini.NewGenerator(ctx, key, config.Gemini.Model, config.MaxOutputTokens)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", config.Provider)
	}
}

func providerKey(name, envName string, config ProviderConfig) (string, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  name + " api key",
		Value: config.APIKey,
		File:  config.APIKeyFile,
	})
	if err != nil {
		return "", fmt.Errorf("%w (set %s or %s_FILE)", err, envName, envName)
	}
	return key, nil
}
