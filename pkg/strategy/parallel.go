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

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
)

// parallelGraph fans the same input out to every participant
// concurrently and fans their responses back in, preserving
// declaration order in the aggregated output.
type parallelGraph struct {
	participants []*agent.Instance
}

func buildParallel(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	participants := make([]*agent.Instance, 0, len(def.Steps))
	for _, s := range def.Steps {
		inst, ok := agents[s.AgentID]
		if !ok {
			return nil, fmt.Errorf("parallel: step %q references unknown agent %q", s.ID, s.AgentID)
		}
		participants = append(participants, inst)
	}
	return &parallelGraph{participants: participants}, nil
}

func validateParallel(def config.WorkflowDefinition) []string {
	var errs []string
	if len(def.Steps) == 0 {
		errs = append(errs, "parallel workflow requires at least one step")
	}
	if len(def.Steps) < 2 {
		errs = append(errs, "parallel workflow should have at least 2 agents to be effective")
	}
	return errs
}

func (g *parallelGraph) Kind() config.WorkflowKind { return config.WorkflowParallel }

func (g *parallelGraph) Run(ctx context.Context, bus *events.Bus, workflowID, input string) ([]StepOutput, error) {
	outputs := make([]StepOutput, len(g.participants))
	group, gctx := errgroup.WithContext(ctx)

	for i, inst := range g.participants {
		i, inst := i, inst
		group.Go(func() error {
			bus.EmitSimple(events.TypeAgentStart, events.AgentStartPayload{AgentName: inst.ID, Input: input})
			resp, err := inst.Invoke(gctx, []provider.ChatMessage{{Role: provider.RoleUser, Content: input}})
			if err != nil {
				return fmt.Errorf("agent %q: %w", inst.ID, err)
			}
			bus.EmitSimple(events.TypeAgentResponse, events.AgentResponsePayload{AgentName: inst.ID, Output: extractContent(resp)})
			outputs[i] = StepOutput{
				StepID:   inst.ID,
				AgentID:  inst.ID,
				Messages: []provider.ChatMessage{{Role: provider.RoleAssistant, Content: resp.Content}},
				Value:    resp.Content,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{Error: err.Error()})
		return outputs, err
	}

	aggregated := make([]string, len(outputs))
	for i, o := range outputs {
		aggregated[i] = o.Value
	}
	outputs = append(outputs, StepOutput{StepID: "aggregator", Value: strings.Join(aggregated, "\n\n")})
	return outputs, nil
}
