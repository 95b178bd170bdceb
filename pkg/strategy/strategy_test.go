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

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/provider"
)

// scriptedChatClient returns one response per call, in order, cycling
// back to the last response once exhausted so strategies that loop
// (group_chat, magentic) don't panic on an out-of-range index.
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
	resp := c.responses[idx]
	c.calls++
	return resp, nil
}

func (c *scriptedChatClient) Stream(context.Context, []provider.ChatMessage, []provider.ToolSpec) (<-chan provider.StreamEvent, error) {
	return nil, nil
}

func (c *scriptedChatClient) Close() error { return nil }

func (c *scriptedChatClient) RequiredEnvVars() []string { return nil }

func (c *scriptedChatClient) SupportedModels() []string { return nil }

func (c *scriptedChatClient) HealthCheck(context.Context) bool { return true }

func newScriptedAgent(id string, responses ...provider.ChatResponse) *agent.Instance {
	return &agent.Instance{
		ID:         id,
		ChatClient: &scriptedChatClient{responses: responses},
	}
}
