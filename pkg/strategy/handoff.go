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

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
)

const maxHandoffs = 25

// handoffGraph starts at StartID and follows whatever transition its
// current speaker picks, exposed to it as tool calls named
// "handoff_to_<target>", until an agent responds without picking one.
type handoffGraph struct {
	startID    string
	steps      map[string]config.WorkflowStep
	agentsByID map[string]*agent.Instance
}

func buildHandoff(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	steps := make(map[string]config.WorkflowStep, len(def.Steps))
	agentsByID := make(map[string]*agent.Instance, len(def.Steps))
	for _, s := range def.Steps {
		inst, ok := agents[s.AgentID]
		if !ok {
			return nil, fmt.Errorf("handoff: step %q references unknown agent %q", s.ID, s.AgentID)
		}
		steps[s.ID] = s
		agentsByID[s.ID] = inst
	}
	return &handoffGraph{startID: def.StartID, steps: steps, agentsByID: agentsByID}, nil
}

func validateHandoff(def config.WorkflowDefinition) []string {
	var errs []string
	if def.StartID == "" {
		errs = append(errs, "handoff workflow requires start_id")
	}
	hasTransitions := false
	for _, s := range def.Steps {
		if len(s.Transitions) > 0 {
			hasTransitions = true
			break
		}
	}
	if !hasTransitions {
		errs = append(errs, "handoff workflow requires at least one step with transitions")
	}
	return errs
}

func (g *handoffGraph) Kind() config.WorkflowKind { return config.WorkflowHandoff }

func handoffToolName(targetID string) string { return "handoff_to_" + targetID }

func (g *handoffGraph) Run(ctx context.Context, bus *events.Bus, workflowID, input string) ([]StepOutput, error) {
	conversation := []provider.ChatMessage{{Role: provider.RoleUser, Content: input}}
	var outputs []StepOutput

	currentID := g.startID
	for hops := 0; hops < maxHandoffs; hops++ {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		step, ok := g.steps[currentID]
		if !ok {
			return outputs, fmt.Errorf("handoff: step %q not found", currentID)
		}
		inst := g.agentsByID[currentID]

		transitionTools := make([]provider.ToolSpec, 0, len(step.Transitions))
		for _, target := range step.Transitions {
			transitionTools = append(transitionTools, provider.ToolSpec{
				Name:        handoffToolName(target),
				Description: fmt.Sprintf("Hand off the conversation to %q.", target),
			})
		}

		bus.EmitSimple(events.TypeAgentStart, events.AgentStartPayload{AgentName: inst.ID, Input: lastUserMessage(conversation)})
		resp, sentMessages, err := inst.InvokeRouted(ctx, conversation, transitionTools)
		if err != nil {
			bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{AgentName: inst.ID, Error: err.Error()})
			return outputs, fmt.Errorf("agent %q: %w", inst.ID, err)
		}
		bus.EmitSimple(events.TypeAgentResponse, events.AgentResponsePayload{AgentName: inst.ID, Output: extractContent(resp)})

		conversation = sentMessages
		if resp.Content != "" {
			conversation = append(conversation, provider.ChatMessage{Role: provider.RoleAssistant, Content: resp.Content})
		}
		outputs = append(outputs, StepOutput{StepID: step.ID, AgentID: inst.ID, Messages: append([]provider.ChatMessage(nil), conversation...), Value: resp.Content})

		nextID, handedOff := nextHandoffTarget(resp, step.Transitions)
		if !handedOff {
			return outputs, nil
		}
		currentID = nextID
	}
	return outputs, fmt.Errorf("handoff: exceeded maximum of %d handoffs without terminating", maxHandoffs)
}

func nextHandoffTarget(resp provider.ChatResponse, transitions []string) (string, bool) {
	for _, call := range resp.ToolCalls {
		for _, target := range transitions {
			if call.Name == handoffToolName(target) {
				return target, true
			}
		}
	}
	return "", false
}
