package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1200 * time.Millisecond

	defaultMaxLogLength = 200
)

// RetryPolicy bounds the attempts made for one assessment. The delay doubles after
// every failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type Gateway struct {
	provider  Provider
	retry     RetryPolicy
	logger    *zap.Logger
	maxLogLen int

	wait func(ctx context.Context, d time.Duration) error
}

func NewGateway(provider Provider, retry RetryPolicy, log *zap.Logger) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("llm provider is required")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultMaxAttempts
	}
	if retry.BaseDelay < 0 {
		retry.BaseDelay = DefaultBaseDelay
	}

	return &Gateway{
		provider:  provider,
		retry:     retry,
		logger:    logger.ForProvider(log, provider.Name(), provider.Model()),
		maxLogLen: defaultMaxLogLength,
		wait:      utils.WaitFor,
	}, nil
}

// Provider returns the backend the gateway sends prompts to.
func (g *Gateway) Provider() Provider { return g.provider }

// BuildPrompt appends the profile to the instruction template.
func BuildPrompt(profileText string) string {
	return strings.TrimSpace(promptTemplate) + "\n\nJSON:\n" + profileText
}

// Assess returns the raw provider answer. Every provider error is retried; the wait
// happens only between attempts. A cancelled context stops the loop.
func (g *Gateway) Assess(ctx context.Context, profileText string) (string, error) {
	prompt := BuildPrompt(profileText)

	g.logger.Debug("llm request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	delay := g.retry.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		raw, err := g.provider.Send(ctx, prompt)
		if err == nil {
			g.logger.Debug("llm response",
				zap.Int("attempt", attempt),
				zap.Int("response_length", utf8.RuneCountInString(raw)),
				zap.String("response_preview", utils.TruncateForLog(raw, g.maxLogLen)),
			)
			return raw, nil
		}
		lastErr = err

		if attempt == g.retry.MaxAttempts {
			break
		}

		g.logger.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if err := g.wait(ctx, delay); err != nil {
			return "", fmt.Errorf("waiting before retry: %w", err)
		}
		delay *= 2
	}

	return "", &ExhaustedError{Attempts: g.retry.MaxAttempts, Err: lastErr}
}

// Evaluate is Assess followed by Parse.
func (g *Gateway) Evaluate(ctx context.Context, profileText string) (*Assessment, error) {
	raw, err := g.Assess(ctx, profileText)
	if err != nil {
		return nil, err
	}

	assessment := Parse(raw)
	assessment.Raw = raw
	return assessment, nil
}
