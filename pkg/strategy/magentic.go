// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
)

const defaultMaxStall = 3

// magenticGraph is a manager-driven orchestrator like group_chat, plus
// a task ledger the manager maintains across rounds and a stall counter
// that escalates (terminates with an error) after max_stall consecutive
// rounds produce no new ledger entry. When EnablePlanReview is set, a
// WORKFLOW_STEP event with StepID "plan_review" is emitted after the
// manager's opening plan is produced and before execution begins; the
// event does not carry the plan text, and the run continues without
// waiting for approval.
type magenticGraph struct {
	manager      *agent.Instance
	participants map[string]*agent.Instance
	order        []string
	maxRounds    int
	maxStall     int
	planReview   bool
}

func buildMagentic(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	participants := make(map[string]*agent.Instance, len(def.Steps))
	order := make([]string, 0, len(def.Steps))
	for _, s := range def.Steps {
		inst, ok := agents[s.AgentID]
		if !ok {
			return nil, fmt.Errorf("magentic: step %q references unknown agent %q", s.ID, s.AgentID)
		}
		participants[inst.ID] = inst
		order = append(order, inst.ID)
	}

	manager, ok := agents[ManagerAgentID]
	if !ok {
		return nil, fmt.Errorf("magentic: requires manager_model_ref")
	}

	maxRounds := def.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	maxStall := def.MaxStall
	if maxStall <= 0 {
		maxStall = defaultMaxStall
	}

	return &magenticGraph{
		manager:      manager,
		participants: participants,
		order:        order,
		maxRounds:    maxRounds,
		maxStall:     maxStall,
		planReview:   def.EnablePlanReview,
	}, nil
}

func validateMagentic(def config.WorkflowDefinition) []string {
	var errs []string
	if len(def.Steps) == 0 {
		errs = append(errs, "magentic workflow requires at least one step")
	}
	if def.ManagerModelRef == "" {
		errs = append(errs, "magentic workflow requires manager_model_ref")
	}
	return errs
}

func (g *magenticGraph) Kind() config.WorkflowKind { return config.WorkflowMagentic }

func (g *magenticGraph) Run(ctx context.Context, bus *events.Bus, workflowID, input string) ([]StepOutput, error) {
	names := strings.Join(g.order, ", ")

	planResp, err := g.manager.Invoke(ctx, []provider.ChatMessage{{Role: provider.RoleUser, Content: fmt.Sprintf(
		"Task: %s\nParticipants available: %s\nProduce a short step-by-step plan for completing the task.", input, names)}})
	if err != nil {
		return nil, fmt.Errorf("magentic: manager planning: %w", err)
	}
	ledger := []string{planResp.Content}
	if g.planReview {
		bus.EmitSimple(events.TypeWorkflowStep, events.WorkflowStepPayload{StepID: "plan_review"})
	}

	conversation := []provider.ChatMessage{{Role: provider.RoleUser, Content: input}}
	var outputs []StepOutput
	stalls := 0

	for round := 0; round < g.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		selectionResp, err := g.manager.Invoke(ctx, []provider.ChatMessage{{Role: provider.RoleUser, Content: fmt.Sprintf(
			"Ledger so far:\n%s\nSelect the next speaker by their exact name (one of: %s) to make progress on the plan.",
			strings.Join(ledger, "\n"), names)}})
		if err != nil {
			return outputs, fmt.Errorf("magentic manager selection: %w", err)
		}
		speakerName := strings.TrimSpace(selectionResp.Content)
		speaker, ok := g.participants[speakerName]
		if !ok {
			return outputs, fmt.Errorf("magentic: manager selected unregistered participant %q", speakerName)
		}

		bus.EmitSimple(events.TypeAgentStart, events.AgentStartPayload{AgentName: speaker.ID, Input: lastUserMessage(conversation)})
		resp, err := speaker.Invoke(ctx, conversation)
		if err != nil {
			bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{AgentName: speaker.ID, Error: err.Error()})
			return outputs, fmt.Errorf("agent %q: %w", speaker.ID, err)
		}
		bus.EmitSimple(events.TypeAgentResponse, events.AgentResponsePayload{AgentName: speaker.ID, Output: extractContent(resp)})

		conversation = append(conversation, provider.ChatMessage{Role: provider.RoleAssistant, Content: resp.Content})
		outputs = append(outputs, StepOutput{StepID: speaker.ID, AgentID: speaker.ID, Messages: append([]provider.ChatMessage(nil), conversation...), Value: resp.Content})

		entry := fmt.Sprintf("[%s] %s", speaker.ID, resp.Content)
		if contains(ledger, entry) {
			stalls++
		} else {
			stalls = 0
			ledger = append(ledger, entry)
		}
		if stalls >= g.maxStall {
			return outputs, fmt.Errorf("magentic: escalated after %d consecutive unproductive rounds", stalls)
		}
	}

	return outputs, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
