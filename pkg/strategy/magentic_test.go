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

func TestValidateMagenticRequiresManagerModelRef(t *testing.T) {
	def := config.WorkflowDefinition{Steps: []config.WorkflowStep{{ID: "s1", AgentID: "alice"}}}
	errs := validateMagentic(def)
	assert.NotEmpty(t, errs)
}

func TestBuildMagenticRequiresRegisteredManager(t *testing.T) {
	alice := newScriptedAgent("alice", provider.ChatResponse{Content: "hi"})
	def := config.WorkflowDefinition{
		Steps:           []config.WorkflowStep{{ID: "s1", AgentID: "alice"}},
		ManagerModelRef: "manager-model",
	}
	_, err := buildMagentic(def, map[string]*agent.Instance{"alice": alice})
	require.Error(t, err)
}

func TestMagenticGraphRunCompletesWithinMaxRounds(t *testing.T) {
	manager := newScriptedAgent("__manager__",
		provider.ChatResponse{Content: "plan: research then report"},
		provider.ChatResponse{Content: "alice"},
	)
	alice := newScriptedAgent("alice", provider.ChatResponse{Content: "finding #1"})

	def := config.WorkflowDefinition{
		Steps:           []config.WorkflowStep{{ID: "s1", AgentID: "alice"}},
		ManagerModelRef: "manager-model",
		MaxRounds:       1,
	}
	graph, err := buildMagentic(def, map[string]*agent.Instance{ManagerAgentID: manager, "alice": alice})
	require.NoError(t, err)
	assert.Equal(t, config.WorkflowMagentic, graph.Kind())

	outputs, err := graph.Run(context.Background(), events.New(), "wf1", "research topic X")
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "alice", outputs[0].StepID)
	assert.Equal(t, "finding #1", outputs[0].Value)
}

func TestMagenticGraphRunEscalatesAfterUnproductiveRounds(t *testing.T) {
	manager := newScriptedAgent("__manager__",
		provider.ChatResponse{Content: "plan: loop forever"},
		provider.ChatResponse{Content: "alice"},
	)
	alice := newScriptedAgent("alice", provider.ChatResponse{Content: "identical output"})

	def := config.WorkflowDefinition{
		Steps:           []config.WorkflowStep{{ID: "s1", AgentID: "alice"}},
		ManagerModelRef: "manager-model",
		MaxRounds:       10,
		MaxStall:        1,
	}
	graph, err := buildMagentic(def, map[string]*agent.Instance{ManagerAgentID: manager, "alice": alice})
	require.NoError(t, err)

	outputs, err := graph.Run(context.Background(), events.New(), "wf1", "research topic X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escalated")
	assert.Len(t, outputs, 2)
}
