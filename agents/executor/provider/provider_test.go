/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"testing"

	"chainguard.dev/prbot/agents/promptbuilder"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

type req struct{}

func (req) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) { return p, nil }

type resp struct {
	OK bool `json:"ok"`
}

func TestNew(t *testing.T) {
	oc := openai.NewClient()
	ac := anthropic.NewClient()
	prompt := promptbuilder.MustNewPrompt("hello")

	tests := []struct {
		name    string
		backend Backend
		wantErr bool
	}{
		{name: "openai", backend: Backend{Name: OpenAI, OpenAI: &oc}},
		{name: "claude with model", backend: Backend{Name: Claude, Model: "claude-x", Claude: &ac}},
		{name: "missing client", backend: Backend{Name: Gemini}, wantErr: true},
		{name: "mismatched client", backend: Backend{Name: Claude, OpenAI: &oc}, wantErr: true},
		{name: "unknown", backend: Backend{Name: "llama"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := New[req, *resp](tt.backend, "task", prompt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && exec == nil {
				t.Error("New() = nil executor")
			}
		})
	}
}
