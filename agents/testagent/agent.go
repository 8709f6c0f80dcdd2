/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package testagent holds the model-facing steps of the test pipeline:
// deciding whether tests are needed, proposing test files and fixing
// failing ones. Each step recovers from model errors locally.
package testagent

import (
	"context"
	"fmt"

	"chainguard.dev/prbot/agents/executor"
	"chainguard.dev/prbot/agents/executor/provider"
	"chainguard.dev/prbot/agents/result"
	"github.com/chainguard-dev/clog"
)

// Agent runs the gating, proposal and fix steps.
type Agent struct {
	gating    executor.Interface[*GatingRequest, *GatingDecision]
	proposals executor.Interface[*ProposalRequest, *ProposalSet]
	fixer     executor.Interface[*FixRequest, *FixResponse]
}

// New builds the three executors on backend.
func New(backend provider.Backend) (*Agent, error) {
	gating, err := provider.New[*GatingRequest, *GatingDecision](backend, "test_gating", gatingPrompt,
		executor.WithSystemInstructions(gatingSystem))
	if err != nil {
		return nil, fmt.Errorf("creating gating executor: %w", err)
	}
	proposals, err := provider.New[*ProposalRequest, *ProposalSet](backend, "test_proposals", proposalPrompt,
		executor.WithSystemInstructions(proposalSystem), executor.WithMaxTokens(16384))
	if err != nil {
		return nil, fmt.Errorf("creating proposal executor: %w", err)
	}
	fixer, err := provider.New[*FixRequest, *FixResponse](backend, "fix_test", fixPrompt,
		executor.WithSystemInstructions(fixSystem))
	if err != nil {
		return nil, fmt.Errorf("creating fix executor: %w", err)
	}
	return NewAgent(gating, proposals, fixer), nil
}

// NewAgent assembles an Agent from existing executors.
func NewAgent(
	gating executor.Interface[*GatingRequest, *GatingDecision],
	proposals executor.Interface[*ProposalRequest, *ProposalSet],
	fixer executor.Interface[*FixRequest, *FixResponse],
) *Agent {
	return &Agent{gating: gating, proposals: proposals, fixer: fixer}
}

// Decide asks whether tests should be generated. It fails closed: any error
// yields a negative decision whose reasoning starts with "ERROR:".
func (a *Agent) Decide(ctx context.Context, req *GatingRequest) GatingDecision {
	d, err := a.gating.Execute(ctx, req)
	if err != nil || d == nil {
		if err == nil {
			err = fmt.Errorf("no decision returned")
		}
		clog.FromContext(ctx).With("error", err).Warn("Gating failed, skipping test generation")
		return GatingDecision{Reasoning: fmt.Sprintf("ERROR: %v", err)}
	}
	return *d
}

// Propose generates test proposals. Failures yield no proposals.
func (a *Agent) Propose(ctx context.Context, req *ProposalRequest) []Proposal {
	set, err := a.proposals.Execute(ctx, req)
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Proposal generation failed")
		return nil
	}
	if set == nil {
		return nil
	}
	return set.Proposals
}

// Fix asks for a repaired version of a failing test file. An empty result
// with a nil error means the model declined to fix it.
func (a *Agent) Fix(ctx context.Context, req *FixRequest) (result.Optional[string], error) {
	resp, err := a.fixer.Execute(ctx, req)
	if err != nil {
		return result.None[string](), err
	}
	if resp == nil || resp.FixedContent == nil || *resp.FixedContent == "" {
		return result.None[string](), nil
	}
	return result.Some(*resp.FixedContent), nil
}
