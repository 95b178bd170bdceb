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

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/fluxoerr"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/strategy"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

type scriptedChatClient struct {
	responses []provider.ChatResponse
	calls     int
}

func (c *scriptedChatClient) ModelName() string { return "stub" }
func (c *scriptedChatClient) Complete(_ context.Context, _ []provider.ChatMessage, _ []provider.ToolSpec) (provider.ChatResponse, error) {
	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	return c.responses[idx], nil
}
func (c *scriptedChatClient) Stream(context.Context, []provider.ChatMessage, []provider.ToolSpec) (<-chan provider.StreamEvent, error) {
	return nil, nil
}
func (c *scriptedChatClient) Close() error                   { return nil }
func (c *scriptedChatClient) RequiredEnvVars() []string       { return nil }
func (c *scriptedChatClient) SupportedModels() []string       { return nil }
func (c *scriptedChatClient) HealthCheck(context.Context) bool { return true }

func newTestEngine(t *testing.T, modelID string, responses ...provider.ChatResponse) *Engine {
	t.Helper()
	chatRegistry := provider.NewChatRegistry()
	require.NoError(t, chatRegistry.Register(modelID, provider.ChatClient(&scriptedChatClient{responses: responses})))

	factory := &agent.Factory{
		Models:       map[string]config.ModelReference{modelID: {ID: modelID}},
		ChatRegistry: chatRegistry,
		ToolRegistry: tool.NewRegistry(),
		Bus:          events.New(),
	}
	return &Engine{Agents: factory, Strategies: strategy.NewRegistry(), Bus: events.New()}
}

func TestEngineBuildAndRunSequentialWorkflow(t *testing.T) {
	eng := newTestEngine(t, "model-a", provider.ChatResponse{Content: "the answer"})
	def := config.WorkflowDefinition{
		Kind:  config.WorkflowSequential,
		Steps: []config.WorkflowStep{{ID: "s1", Kind: config.StepKindAgent, AgentID: "researcher"}},
	}
	agentDefs := map[string]config.AgentDefinition{
		"researcher": {ID: "researcher", ModelRef: "model-a"},
	}

	wf, err := eng.Build("wf-1", "demo", def, agentDefs)
	require.NoError(t, err)

	output, outputs, err := wf.Run(context.Background(), "what is it?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", output)
	require.Len(t, outputs, 1)
}

func TestEngineBuildRejectsUnknownAgentReference(t *testing.T) {
	eng := newTestEngine(t, "model-a")
	def := config.WorkflowDefinition{
		Kind:  config.WorkflowSequential,
		Steps: []config.WorkflowStep{{ID: "s1", AgentID: "missing"}},
	}
	_, err := eng.Build("wf-1", "demo", def, map[string]config.AgentDefinition{})
	require.Error(t, err)
	assert.Equal(t, fluxoerr.ReferenceUnresolved, fluxoerr.Classify(err))
}

func TestEngineBuildSynthesisesManagerForGroupChat(t *testing.T) {
	eng := newTestEngine(t, "model-a", provider.ChatResponse{Content: "alice"}, provider.ChatResponse{Content: "done"})
	def := config.WorkflowDefinition{
		Kind: config.WorkflowGroupChat,
		Steps: []config.WorkflowStep{
			{ID: "s1", AgentID: "alice"}, {ID: "s2", AgentID: "bob"},
		},
		ManagerModelRef:      "model-a",
		TerminationCondition: "done",
	}
	agentDefs := map[string]config.AgentDefinition{
		"alice": {ID: "alice", ModelRef: "model-a"},
		"bob":   {ID: "bob", ModelRef: "model-a"},
	}

	wf, err := eng.Build("wf-2", "group", def, agentDefs)
	require.NoError(t, err)

	_, outputs, err := wf.Run(context.Background(), "discuss")
	require.NoError(t, err)
	assert.NotEmpty(t, outputs)
}

func TestWorkflowRunClassifiesCancellation(t *testing.T) {
	eng := newTestEngine(t, "model-a", provider.ChatResponse{Content: "ok"})
	def := config.WorkflowDefinition{
		Kind:  config.WorkflowSequential,
		Steps: []config.WorkflowStep{{ID: "s1", AgentID: "a"}},
	}
	wf, err := eng.Build("wf-3", "demo", def, map[string]config.AgentDefinition{"a": {ID: "a", ModelRef: "model-a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = wf.Run(ctx, "go")
	require.Error(t, err)
	assert.Equal(t, fluxoerr.Cancelled, fluxoerr.Classify(err))
}

func TestExtractFinalOutputPrefersValueThenMessages(t *testing.T) {
	assert.Equal(t, "", ExtractFinalOutput(nil))
	assert.Equal(t, "v", ExtractFinalOutput([]strategy.StepOutput{{Value: "v"}}))
	assert.Equal(t, "last msg", ExtractFinalOutput([]strategy.StepOutput{
		{Messages: []provider.ChatMessage{{Content: "first"}, {Content: "last msg"}}},
	}))
}
