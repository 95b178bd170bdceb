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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
)

func TestValidateHandoffRequiresStartIDAndTransitions(t *testing.T) {
	errs := validateHandoff(config.WorkflowDefinition{})
	assert.NotEmpty(t, errs)
}

func TestHandoffGraphRunFollowsTransitionToolCall(t *testing.T) {
	frontDesk := newScriptedAgent("front_desk", provider.ChatResponse{
		ToolCalls: []provider.ToolCall{{ID: "c1", Name: handoffToolName("closer")}},
	})
	closer := newScriptedAgent("closer", provider.ChatResponse{Content: "deal closed"})

	def := config.WorkflowDefinition{
		StartID: "front_desk",
		Steps: []config.WorkflowStep{
			{ID: "front_desk", AgentID: "front_desk", Transitions: []string{"closer"}},
			{ID: "closer", AgentID: "closer"},
		},
	}
	graph, err := buildHandoff(def, map[string]*agent.Instance{"front_desk": frontDesk, "closer": closer})
	require.NoError(t, err)
	assert.Equal(t, config.WorkflowHandoff, graph.Kind())

	outputs, err := graph.Run(context.Background(), events.New(), "wf1", "I want to buy")
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "front_desk", outputs[0].StepID)
	assert.Equal(t, "closer", outputs[1].StepID)
	assert.Equal(t, "deal closed", outputs[1].Value)
}

func TestHandoffGraphRunStopsWhenNoTransitionIsPicked(t *testing.T) {
	solo := newScriptedAgent("solo", provider.ChatResponse{Content: "handled it myself"})

	def := config.WorkflowDefinition{
		StartID: "solo",
		Steps:   []config.WorkflowStep{{ID: "solo", AgentID: "solo", Transitions: []string{"other"}}},
	}
	graph, err := buildHandoff(def, map[string]*agent.Instance{"solo": solo})
	require.NoError(t, err)

	outputs, err := graph.Run(context.Background(), events.New(), "wf1", "hello")
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "handled it myself", outputs[0].Value)
}
