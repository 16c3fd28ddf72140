package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubProvider struct {
	responses []string
	errs      []error
	prompts   []string
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) Send(_ context.Context, prompt string) (string, error) {
	call := len(s.prompts)
	s.prompts = append(s.prompts, prompt)

	if call < len(s.errs) && s.errs[call] != nil {
		return "", s.errs[call]
	}
	if call < len(s.responses) {
		return s.responses[call], nil
	}
	return "", errors.New("no response configured")
}

func newTestGateway(t *testing.T, provider Provider, retry RetryPolicy, log *zap.Logger) (*Gateway, *[]time.Duration) {
	t.Helper()

	g, err := NewGateway(provider, retry, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var waits []time.Duration
	g.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return g, &waits
}

func TestNewGatewayDefaults(t *testing.T) {
	if _, err := NewGateway(nil, RetryPolicy{}, nil); err == nil {
		t.Fatalf("expected error without provider")
	}

	stub := &stubProvider{}
	g, err := NewGateway(stub, RetryPolicy{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.retry.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("expected default attempts, got %d", g.retry.MaxAttempts)
	}
	if g.Provider() != stub || g.Provider().Name() != "stub" {
		t.Fatalf("expected the configured provider, got %v", g.Provider())
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(`{"personal":{}}`)

	if !strings.HasPrefix(prompt, "You are a recruiting analyst.") {
		t.Fatalf("expected instruction template first, got %q", prompt[:40])
	}
	if !strings.HasSuffix(prompt, "Follow-Ups: <bullet list>\n\nJSON:\n{\"personal\":{}}") {
		t.Fatalf("unexpected prompt ending: %q", prompt)
	}
}

func TestAssessRetriesThenSucceeds(t *testing.T) {
	provider := &stubProvider{
		errs:      []error{errors.New("503"), nil},
		responses: []string{"", "Summary: ok\nScore: 7"},
	}
	g, waits := newTestGateway(t, provider, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, nil)

	assessment, err := g.Evaluate(context.Background(), "{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Score != 7 || assessment.Summary != "ok" {
		t.Fatalf("unexpected assessment: %+v", assessment)
	}
	if assessment.Raw != "Summary: ok\nScore: 7" {
		t.Fatalf("expected raw answer to be kept, got %q", assessment.Raw)
	}
	if len(provider.prompts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(provider.prompts))
	}
	if len(*waits) != 1 || (*waits)[0] != time.Second {
		t.Fatalf("unexpected waits: %v", *waits)
	}
}

func TestAssessExhaustion(t *testing.T) {
	cause := errors.New("connection reset")
	provider := &stubProvider{errs: []error{errors.New("first"), errors.New("second"), errors.New("third"), cause}}

	core, observed := observer.New(zapcore.WarnLevel)
	g, waits := newTestGateway(t, provider, RetryPolicy{MaxAttempts: 4, BaseDelay: 1200 * time.Millisecond}, zap.New(core))

	_, err := g.Assess(context.Background(), "{}")

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 4 {
		t.Fatalf("expected 4 attempts recorded, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the last failure to be wrapped, got %v", err)
	}
	if len(provider.prompts) != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", len(provider.prompts))
	}

	expected := []time.Duration{1200 * time.Millisecond, 2400 * time.Millisecond, 4800 * time.Millisecond}
	if len(*waits) != len(expected) {
		t.Fatalf("expected waits between attempts only, got %v", *waits)
	}
	for i, d := range expected {
		if (*waits)[i] != d {
			t.Fatalf("wait %d = %s, want %s", i, (*waits)[i], d)
		}
	}

	entries := observed.FilterMessage("llm call failed, retrying").All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 retry warnings, got %d", len(entries))
	}
	if entries[0].ContextMap()["ai_provider"] != "stub" {
		t.Fatalf("expected provider field on gateway logs, got %v", entries[0].ContextMap())
	}
}

func TestAssessStopsOnCancelledContext(t *testing.T) {
	provider := &stubProvider{errs: []error{errors.New("fail"), errors.New("fail"), errors.New("fail")}}
	g, _ := newTestGateway(t, provider, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	g.wait = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := g.Assess(ctx, "{}")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(provider.prompts) != 1 {
		t.Fatalf("expected no attempt after cancellation, got %d", len(provider.prompts))
	}
}

func TestSkipped(t *testing.T) {
	a := Skipped("no API key")
	if a.Summary != "LLM evaluation skipped (no API key)." || a.Score != 0 || a.FollowUps != "None" {
		t.Fatalf("unexpected placeholder: %+v", a)
	}
}
