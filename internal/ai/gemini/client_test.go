package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestClientConfigTimeout(t *testing.T) {
	cfg := clientConfig("key")

	if cfg.Backend != genai.BackendGeminiAPI || cfg.APIKey != "key" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HTTPClient == nil || cfg.HTTPClient.Timeout != 60*time.Second {
		t.Fatalf("expected a 60s http timeout, got %+v", cfg.HTTPClient)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), "  ", "", 0); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestSend(t *testing.T) {
	fake := &fakeModels{resp: textResponse("Summary: ok", "  ", "Score: 7")}
	g := &Generator{models: fake, modelName: DefaultModel, maxTokens: 350}

	out, err := g.Send(context.Background(), "  prompt  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Summary: ok\nScore: 7" {
		t.Fatalf("unexpected output: %q", out)
	}

	if fake.model != DefaultModel || fake.prompt != "prompt" {
		t.Fatalf("unexpected request: model=%q prompt=%q", fake.model, fake.prompt)
	}
	if fake.config == nil || fake.config.MaxOutputTokens != 350 {
		t.Fatalf("expected max output tokens to be set, got %+v", fake.config)
	}
	if fake.config.Temperature == nil || *fake.config.Temperature != temperature {
		t.Fatalf("expected temperature %v", temperature)
	}
	if g.Name() != "gemini" || g.Model() != DefaultModel {
		t.Fatalf("unexpected identity %s/%s", g.Name(), g.Model())
	}
}

func TestSendErrors(t *testing.T) {
	apiErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}

	tests := []struct {
		name   string
		fake   *fakeModels
		prompt string
	}{
		{name: "api error", fake: &fakeModels{err: apiErr}, prompt: "p"},
		{name: "empty answer", fake: &fakeModels{resp: textResponse(" ")}, prompt: "p"},
		{name: "no candidates", fake: &fakeModels{resp: &genai.GenerateContentResponse{}}, prompt: "p"},
		{name: "empty prompt", fake: &fakeModels{resp: textResponse("x")}, prompt: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Generator{models: tt.fake, modelName: "m"}
			if _, err := g.Send(context.Background(), tt.prompt); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	var target genai.APIError
	g := &Generator{models: &fakeModels{err: apiErr}, modelName: "m"}
	_, err := g.Send(context.Background(), "p")
	if !errors.As(err, &target) || target.Code != http.StatusInternalServerError {
		t.Fatalf("expected api error to be wrapped, got %v", err)
	}

	var nilGenerator *Generator
	if _, err := nilGenerator.Send(context.Background(), "p"); err == nil {
		t.Fatalf("expected error for nil generator")
	}
}
