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

	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

type scriptedChatClient struct {
	responses []provider.ChatResponse
	calls     int
}

func (c *scriptedChatClient) ModelName() string { return "stub" }
func (c *scriptedChatClient) Complete(_ context.Context, _ []provider.ChatMessage, _ []provider.ToolSpec) (provider.ChatResponse, error) {
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}
func (c *scriptedChatClient) Stream(context.Context, []provider.ChatMessage, []provider.ToolSpec) (<-chan provider.StreamEvent, error) {
	return nil, nil
}
func (c *scriptedChatClient) Close() error                   { return nil }
func (c *scriptedChatClient) RequiredEnvVars() []string       { return nil }
func (c *scriptedChatClient) SupportedModels() []string       { return nil }
func (c *scriptedChatClient) HealthCheck(context.Context) bool { return true }

func TestInstanceInvokeReturnsFinalResponseWithoutToolCalls(t *testing.T) {
	client := &scriptedChatClient{responses: []provider.ChatResponse{{Content: "hello"}}}
	inst := &Instance{ID: "a1", ChatClient: client, Middleware: Chain(sanitiserMiddleware, eventEmitterMiddleware)}

	resp, err := inst.Invoke(context.Background(), []provider.ChatMessage{{Role: provider.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 1, client.calls)
}

func TestInstanceInvokeResolvesToolCallsBeforeReturning(t *testing.T) {
	client := &scriptedChatClient{responses: []provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{{ID: "c1", Name: "echo", Arguments: map[string]any{"x": 1}}}},
		{Content: "done"},
	}}
	inst := &Instance{
		ID:         "a1",
		ChatClient: client,
		Middleware: Chain(sanitiserMiddleware, eventEmitterMiddleware),
		Callables: map[string]tool.Callable{
			"echo": func(context.Context, map[string]any) (any, error) { return "echoed", nil },
		},
	}

	resp, err := inst.Invoke(context.Background(), []provider.ChatMessage{{Role: provider.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 2, client.calls)
}

func TestSanitiserMiddlewareDropsEmptyMessages(t *testing.T) {
	out, err := sanitiserMiddleware(context.Background(), []provider.ChatMessage{
		{Role: provider.RoleUser, Content: "  "},
		{Role: provider.RoleUser, Content: "keep me"},
		{},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "keep me", out[0].Content)
}

func TestTemplateMiddlewareSubstitutesBothPlaceholdersFromLatestMessage(t *testing.T) {
	mw := templateMiddleware("Context: {{previous_output}} / Echo: {{user_input}}")
	out, err := mw(context.Background(), []provider.ChatMessage{{Role: provider.RoleUser, Content: "42"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Context: 42 / Echo: 42", out[0].Content)
	assert.Equal(t, provider.RoleUser, out[0].Role)
}
