// Package ai asks an LLM provider for a narrative assessment of a compressed profile.
package ai

import (
	"context"
	"fmt"
)

// Provider sends a prompt to a single LLM backend.
type Provider interface {
	Name() string
	Model() string
	Send(ctx context.Context, prompt string) (string, error)
}

// Assessment is the structured part of an LLM answer.
type Assessment struct {
	Summary   string
	Score     int
	Issues    string
	FollowUps string
	Raw       string
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("llm call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Skipped is the assessment stored when no LLM answer could be obtained.
func Skipped(reason string) *Assessment {
	return &Assessment{
		Summary:   fmt.Sprintf("LLM evaluation skipped (%s).", reason),
		Score:     0,
		FollowUps: "None",
	}
}
