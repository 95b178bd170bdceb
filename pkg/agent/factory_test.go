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

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

func newTestFactory(t *testing.T) (*Factory, *scriptedChatClient) {
	t.Helper()
	client := &scriptedChatClient{responses: []provider.ChatResponse{{Content: "ok"}}}
	chatRegistry := provider.NewChatRegistry()
	require.NoError(t, chatRegistry.Register("planner", provider.ChatClient(client)))

	toolRegistry := tool.NewRegistry()

	return &Factory{
		Models:       map[string]config.ModelReference{"planner": {ID: "planner"}},
		ChatRegistry: chatRegistry,
		ToolRegistry: toolRegistry,
		Bus:          events.New(),
	}, client
}

func TestFactoryBuildAssemblesDescriptionAndMiddlewareChain(t *testing.T) {
	factory, _ := newTestFactory(t)

	inst, err := factory.Build(config.AgentDefinition{
		ID:       "researcher",
		Role:     "Finds sources",
		ModelRef: "planner",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "researcher", inst.ID)
	assert.Equal(t, "Participant ID: researcher. Role/Description: Finds sources", inst.Description)
	assert.NotNil(t, inst.Middleware)
	assert.Nil(t, inst.ContextProvider)
}

func TestFactoryBuildRejectsUnknownModelReference(t *testing.T) {
	factory, _ := newTestFactory(t)
	_, err := factory.Build(config.AgentDefinition{ID: "a", ModelRef: "missing"}, "")
	assert.Error(t, err)
}

func TestFactoryBuildRejectsUnknownTool(t *testing.T) {
	factory, _ := newTestFactory(t)
	_, err := factory.Build(config.AgentDefinition{ID: "a", ModelRef: "planner", ToolIDs: []string{"missing"}}, "")
	assert.Error(t, err)
}

func TestFactoryBuildWrapsTemplateMiddlewareWhenInputTemplateSet(t *testing.T) {
	factory, client := newTestFactory(t)
	inst, err := factory.Build(config.AgentDefinition{ID: "a", ModelRef: "planner"}, "Answer: {{user_input}}")
	require.NoError(t, err)

	_, err = inst.Invoke(context.Background(), []provider.ChatMessage{{Role: provider.RoleUser, Content: "42"}})
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
}
