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

// routerGraph classifies input with the StartID agent and dispatches to
// the target step whose id matches the classifier's (trimmed,
// lower-cased) output; the last declared target is the default.
type routerGraph struct {
	classifier   *agent.Instance
	classifierID string
	targets      []config.WorkflowStep
	targetAgents map[string]*agent.Instance
}

func buildRouter(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	classifier, ok := agents[def.StartID]
	if !ok {
		return nil, fmt.Errorf("router: start_id %q not found among steps", def.StartID)
	}

	var targets []config.WorkflowStep
	targetAgents := make(map[string]*agent.Instance)
	for _, s := range def.Steps {
		if s.ID == def.StartID {
			continue
		}
		inst, ok := agents[s.AgentID]
		if !ok {
			return nil, fmt.Errorf("router: step %q references unknown agent %q", s.ID, s.AgentID)
		}
		targets = append(targets, s)
		targetAgents[s.ID] = inst
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("router: requires at least one target step besides start_id")
	}

	return &routerGraph{classifier: classifier, classifierID: def.StartID, targets: targets, targetAgents: targetAgents}, nil
}

func validateRouter(def config.WorkflowDefinition) []string {
	var errs []string
	if def.StartID == "" {
		errs = append(errs, "router workflow requires start_id")
	}
	targetCount := 0
	for _, s := range def.Steps {
		if s.ID != def.StartID {
			targetCount++
		}
	}
	if targetCount < 1 {
		errs = append(errs, "router workflow requires at least one target step")
	}
	return errs
}

func (g *routerGraph) Kind() config.WorkflowKind { return config.WorkflowRouter }

func (g *routerGraph) Run(ctx context.Context, bus *events.Bus, workflowID, input string) ([]StepOutput, error) {
	bus.EmitSimple(events.TypeAgentStart, events.AgentStartPayload{AgentName: g.classifier.ID, Input: input})
	classification, err := g.classifier.Invoke(ctx, []provider.ChatMessage{{Role: provider.RoleUser, Content: input}})
	if err != nil {
		bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{AgentName: g.classifier.ID, Error: err.Error()})
		return nil, fmt.Errorf("router classifier %q: %w", g.classifier.ID, err)
	}
	bus.EmitSimple(events.TypeAgentResponse, events.AgentResponsePayload{AgentName: g.classifier.ID, Output: extractContent(classification)})

	normalized := strings.TrimSpace(strings.ToLower(classification.Content))
	target := g.targets[len(g.targets)-1] // last declared target is the default case
	for _, candidate := range g.targets[:len(g.targets)-1] {
		if strings.TrimSpace(strings.ToLower(candidate.ID)) == normalized {
			target = candidate
			break
		}
	}

	outputs := []StepOutput{{StepID: g.classifierID, AgentID: g.classifier.ID, Value: classification.Content}}

	inst := g.targetAgents[target.ID]
	bus.EmitSimple(events.TypeAgentStart, events.AgentStartPayload{AgentName: inst.ID, Input: classification.Content})
	resp, err := inst.Invoke(ctx, []provider.ChatMessage{{Role: provider.RoleUser, Content: classification.Content}})
	if err != nil {
		bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{AgentName: inst.ID, Error: err.Error()})
		return outputs, fmt.Errorf("router target %q: %w", target.ID, err)
	}
	bus.EmitSimple(events.TypeAgentResponse, events.AgentResponsePayload{AgentName: inst.ID, Output: extractContent(resp)})

	outputs = append(outputs, StepOutput{StepID: target.ID, AgentID: inst.ID, Value: resp.Content})
	return outputs, nil
}
