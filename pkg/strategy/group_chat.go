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

const defaultMaxRounds = 10

// ManagerAgentID is the reserved key under which the engine registers a
// manager agent synthesised from manager_model_ref/manager_instructions,
// for group_chat and magentic graphs to look up. It can never collide
// with a user-declared agent id because those come from workflow steps,
// which never use this reserved name.
const ManagerAgentID = "__manager__"

// groupChatGraph lets a manager agent pick the next speaker, by exact
// registered name, each round until max rounds or a termination
// condition fires.
type groupChatGraph struct {
	manager      *agent.Instance
	participants map[string]*agent.Instance
	order        []string
	maxRounds    int
	termination  string
}

func buildGroupChat(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	participants := make(map[string]*agent.Instance, len(def.Steps))
	order := make([]string, 0, len(def.Steps))
	for _, s := range def.Steps {
		inst, ok := agents[s.AgentID]
		if !ok {
			return nil, fmt.Errorf("group_chat: step %q references unknown agent %q", s.ID, s.AgentID)
		}
		participants[inst.ID] = inst
		order = append(order, inst.ID)
	}

	// The engine synthesises the manager agent from manager_model_ref
	// (falling back to the first participant's model when unset) and
	// registers it under ManagerAgentID; this strategy only looks it up.
	manager, ok := agents[ManagerAgentID]
	if !ok {
		if len(order) == 0 {
			return nil, fmt.Errorf("group_chat: no participants to fall back to for manager")
		}
		manager = participants[order[0]]
	}

	maxRounds := def.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	return &groupChatGraph{
		manager:      manager,
		participants: participants,
		order:        order,
		maxRounds:    maxRounds,
		termination:  strings.ToLower(def.TerminationCondition),
	}, nil
}

func validateGroupChat(def config.WorkflowDefinition) []string {
	var errs []string
	if len(def.Steps) == 0 {
		errs = append(errs, "group_chat workflow requires at least one step")
	}
	if len(def.Steps) < 2 {
		errs = append(errs, "group_chat workflow should have at least 2 participants")
	}
	if def.ManagerModelRef == "" {
		errs = append(errs, "group_chat without manager_model_ref will fall back to the first participant's model, consider setting it explicitly")
	}
	return errs
}

func (g *groupChatGraph) Kind() config.WorkflowKind { return config.WorkflowGroupChat }

func (g *groupChatGraph) Run(ctx context.Context, bus *events.Bus, workflowID, input string) ([]StepOutput, error) {
	conversation := []provider.ChatMessage{{Role: provider.RoleUser, Content: input}}
	var outputs []StepOutput

	names := strings.Join(g.order, ", ")
	selectionPrompt := fmt.Sprintf(
		"Select the next speaker by their exact name (one of: %s). Conversation so far:\n%s",
		names, transcript(conversation))

	for round := 0; round < g.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		selectionResp, err := g.manager.Invoke(ctx, []provider.ChatMessage{{Role: provider.RoleUser, Content: selectionPrompt}})
		if err != nil {
			return outputs, fmt.Errorf("group_chat manager selection: %w", err)
		}
		speakerName := strings.TrimSpace(selectionResp.Content)
		speaker, ok := g.participants[speakerName]
		if !ok {
			return outputs, fmt.Errorf("group_chat: manager selected unregistered participant %q", speakerName)
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

		if g.termination != "" && strings.Contains(strings.ToLower(resp.Content), g.termination) {
			break
		}
		selectionPrompt = fmt.Sprintf(
			"Select the next speaker by their exact name (one of: %s). Conversation so far:\n%s",
			names, transcript(conversation))
	}

	return outputs, nil
}

func transcript(messages []provider.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
