/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/prbot/agents/executor/provider"
	"cloud.google.com/go/compute/metadata"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

type config struct {
	Port          int    `env:"PORT,default=8080"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// GitHub authentication: a token, or a GitHub App installation.
	GitHubToken          string  `env:"GITHUB_TOKEN"`
	GitHubAppID          int64   `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64   `env:"GITHUB_INSTALLATION_ID"`
	GitHubPrivateKeyPath string  `env:"GITHUB_PRIVATE_KEY_PATH"`
	GitHubRPS            float64 `env:"GITHUB_RPS,default=10"`

	// Model configuration
	LLMProvider     string `env:"LLM_PROVIDER,default=openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL,default=gpt-4o-mini"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	ClaudeModel     string `env:"CLAUDE_MODEL"`
	GeminiModel     string `env:"GEMINI_MODEL"`
	GCPProjectID    string `env:"GCP_PROJECT_ID"`
	GCPRegion       string `env:"GCP_REGION,default=us-central1"`

	// Pipelines
	TestDir           string        `env:"TEST_DIR,default=tests"`
	FileSizeThreshold int           `env:"FILE_SIZE_THRESHOLD,default=32000"`
	MaxRetries        int           `env:"MAX_RETRIES,default=3"`
	PytestCommand     string        `env:"PYTEST_COMMAND,default=python -m pytest"`
	PytestTimeout     time.Duration `env:"PYTEST_TIMEOUT,default=5m"`
	ReviewLabel       string        `env:"REVIEW_LABEL,default=agent-review-pr"`
	TestLabel         string        `env:"TEST_LABEL,default=agent-generate-tests"`
	ReviewOnOpen      bool          `env:"REVIEW_ON_OPEN,default=true"`
	Workers           int           `env:"WORKERS,default=4"`
	ArchiveBucket     string        `env:"ARCHIVE_BUCKET"`
}

// projectID returns the configured GCP project, falling back to the
// metadata server when running on GCP.
func (c *config) projectID(ctx context.Context) string {
	if c.GCPProjectID != "" || !metadata.OnGCE() {
		return c.GCPProjectID
	}
	id, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Failed to detect GCP project from metadata server")
		return ""
	}
	clog.InfoContextf(ctx, "Detected GCP project %s", id)
	c.GCPProjectID = id
	return id
}

// newBackend creates the client of the configured model provider.
func newBackend(ctx context.Context, cfg *config) (provider.Backend, error) {
	switch name := provider.Name(cfg.LLMProvider); name {
	case provider.OpenAI:
		if cfg.OpenAIAPIKey == "" {
			return provider.Backend{}, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		client := openai.NewClient(openaioption.WithAPIKey(cfg.OpenAIAPIKey))
		return provider.Backend{Name: name, Model: cfg.OpenAIModel, OpenAI: &client}, nil

	case provider.Claude:
		var opts []anthropicoption.RequestOption
		if cfg.AnthropicAPIKey != "" {
			opts = append(opts, anthropicoption.WithAPIKey(cfg.AnthropicAPIKey))
		} else {
			project := cfg.projectID(ctx)
			if project == "" {
				return provider.Backend{}, errors.New("claude requires ANTHROPIC_API_KEY or a GCP project for Vertex AI")
			}
			opts = append(opts, vertex.WithGoogleAuth(ctx, cfg.GCPRegion, project))
		}
		client := anthropic.NewClient(opts...)
		return provider.Backend{Name: name, Model: cfg.ClaudeModel, Claude: &client}, nil

	case provider.Gemini:
		project := cfg.projectID(ctx)
		if project == "" {
			return provider.Backend{}, errors.New("gemini requires a GCP project for Vertex AI")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  project,
			Location: cfg.GCPRegion,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return provider.Backend{}, fmt.Errorf("creating Google AI client: %w", err)
		}
		return provider.Backend{Name: name, Model: cfg.GeminiModel, Gemini: client}, nil

	default:
		return provider.Backend{}, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
