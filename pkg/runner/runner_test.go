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

package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/engine"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/fluxoerr"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/strategy"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

type scriptedChatClient struct{ response provider.ChatResponse }

func (c *scriptedChatClient) ModelName() string { return "stub" }
func (c *scriptedChatClient) Complete(context.Context, []provider.ChatMessage, []provider.ToolSpec) (provider.ChatResponse, error) {
	return c.response, nil
}
func (c *scriptedChatClient) Stream(context.Context, []provider.ChatMessage, []provider.ToolSpec) (<-chan provider.StreamEvent, error) {
	return nil, nil
}
func (c *scriptedChatClient) Close() error                   { return nil }
func (c *scriptedChatClient) RequiredEnvVars() []string       { return nil }
func (c *scriptedChatClient) SupportedModels() []string       { return nil }
func (c *scriptedChatClient) HealthCheck(context.Context) bool { return true }

func newTestRunner(t *testing.T, modelID string, response provider.ChatResponse) (*Runner, *events.Bus) {
	t.Helper()
	bus := events.New()
	chatRegistry := provider.NewChatRegistry()
	require.NoError(t, chatRegistry.Register(modelID, provider.ChatClient(&scriptedChatClient{response: response})))

	factory := &agent.Factory{
		Models:       map[string]config.ModelReference{modelID: {ID: modelID}},
		ChatRegistry: chatRegistry,
		ToolRegistry: tool.NewRegistry(),
		Bus:          bus,
	}
	eng := &engine.Engine{Agents: factory, Strategies: strategy.NewRegistry(), Bus: bus}
	return New(eng), bus
}

func TestRunnerRunReturnsAgentOutput(t *testing.T) {
	r, _ := newTestRunner(t, "model-a", provider.ChatResponse{Content: "the answer"})
	def := config.AgentDefinition{ID: "researcher", Role: "Researcher", ModelRef: "model-a"}

	output, err := r.Run(context.Background(), "researcher", def, "what is it?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", output)
}

func TestRunnerEmitsRunStartAndCompleteSymmetrically(t *testing.T) {
	r, bus := newTestRunner(t, "model-a", provider.ChatResponse{Content: "done"})
	r.Engine.Agents.ToolRegistry.RegisterAdapter(tool.NewLocalAdapter())
	require.NoError(t, r.Engine.Agents.ToolRegistry.RegisterTool(config.ToolDefinition{
		Name: "search", Transport: config.TransportLocal, Source: "test.Search",
	}))
	def := config.AgentDefinition{ID: "researcher", ModelRef: "model-a", ToolIDs: []string{"search"}}

	var seen []events.Type
	sub := bus.SubscribeAll(func(e events.Event) error {
		seen = append(seen, e.Type)
		return nil
	})
	defer bus.Unsubscribe(sub)

	_, err := r.Run(context.Background(), "researcher", def, "go")
	require.NoError(t, err)

	assert.Contains(t, seen, events.TypeAgentRunStart)
	assert.Contains(t, seen, events.TypeAgentRunComplete)

	var startIdx, completeIdx int
	for i, typ := range seen {
		if typ == events.TypeAgentRunStart {
			startIdx = i
		}
		if typ == events.TypeAgentRunComplete {
			completeIdx = i
		}
	}
	assert.Less(t, startIdx, completeIdx)
}

func TestRunnerPropagatesBuildErrors(t *testing.T) {
	r, _ := newTestRunner(t, "model-a", provider.ChatResponse{Content: "unused"})
	def := config.AgentDefinition{ID: "researcher", ModelRef: "missing-model"}

	_, err := r.Run(context.Background(), "researcher", def, "go")
	require.Error(t, err)
	assert.Equal(t, fluxoerr.ProviderMisconfigured, fluxoerr.Classify(err))
}
