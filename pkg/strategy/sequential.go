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

// sequentialGraph connects agents in declaration order; the message
// flowing along each edge is a growing conversation, and the terminal
// agent's conversation is the final output.
type sequentialGraph struct {
	steps []*agent.Instance
}

func buildSequential(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	steps := make([]*agent.Instance, 0, len(def.Steps))
	for _, s := range def.Steps {
		inst, ok := agents[s.AgentID]
		if !ok {
			return nil, fmt.Errorf("sequential: step %q references unknown agent %q", s.ID, s.AgentID)
		}
		steps = append(steps, inst)
	}
	return &sequentialGraph{steps: steps}, nil
}

func validateSequential(def config.WorkflowDefinition) []string {
	var errs []string
	if len(def.Steps) == 0 {
		errs = append(errs, "sequential workflow requires at least one step")
	}
	return errs
}

func (g *sequentialGraph) Kind() config.WorkflowKind { return config.WorkflowSequential }

func (g *sequentialGraph) Run(ctx context.Context, bus *events.Bus, workflowID, input string) ([]StepOutput, error) {
	conversation := []provider.ChatMessage{{Role: provider.RoleUser, Content: input}}
	outputs := make([]StepOutput, 0, len(g.steps))

	for _, inst := range g.steps {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		bus.EmitSimple(events.TypeAgentStart, events.AgentStartPayload{AgentName: inst.ID, Input: lastUserMessage(conversation)})
		resp, err := inst.Invoke(ctx, conversation)
		if err != nil {
			bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{AgentName: inst.ID, Error: err.Error()})
			return outputs, fmt.Errorf("agent %q: %w", inst.ID, err)
		}
		bus.EmitSimple(events.TypeAgentResponse, events.AgentResponsePayload{AgentName: inst.ID, Output: extractContent(resp)})

		conversation = append(conversation, provider.ChatMessage{Role: provider.RoleAssistant, Content: resp.Content})
		outputs = append(outputs, StepOutput{StepID: inst.ID, AgentID: inst.ID, Messages: append([]provider.ChatMessage(nil), conversation...), Value: resp.Content})
	}
	return outputs, nil
}
