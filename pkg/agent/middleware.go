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
	"strings"

	"github.com/kadirpekel/fluxo/pkg/provider"
)

// sanitiserMiddleware drops messages with no role or no content, so a
// nil or zero-value ChatMessage slipped in by a caller never reaches
// the chat client.
func sanitiserMiddleware(_ context.Context, messages []provider.ChatMessage) ([]provider.ChatMessage, error) {
	out := make([]provider.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "" {
			continue
		}
		if strings.TrimSpace(m.Content) == "" && len(m.ToolCalls) == 0 && m.ToolCallID == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// eventEmitterMiddleware is a pass-through today. It is reserved for
// future per-agent observability; the strategies already emit
// AGENT_START/AGENT_RESPONSE around each agent invocation, so emitting
// here too would double the event stream.
func eventEmitterMiddleware(_ context.Context, messages []provider.ChatMessage) ([]provider.ChatMessage, error) {
	return messages, nil
}

// templateMiddleware substitutes {{user_input}} and {{previous_output}}
// — both aliased to the same inbound message text — into template for
// the latest message in the chain, preserving that message's role.
func templateMiddleware(template string) Middleware {
	return func(_ context.Context, messages []provider.ChatMessage) ([]provider.ChatMessage, error) {
		if len(messages) == 0 {
			return messages, nil
		}
		last := messages[len(messages)-1]
		rendered := strings.ReplaceAll(template, "{{user_input}}", last.Content)
		rendered = strings.ReplaceAll(rendered, "{{previous_output}}", last.Content)

		out := make([]provider.ChatMessage, len(messages))
		copy(out, messages)
		out[len(out)-1] = provider.ChatMessage{
			Role:       last.Role,
			Content:    rendered,
			ToolCalls:  last.ToolCalls,
			ToolCallID: last.ToolCallID,
			ToolName:   last.ToolName,
		}
		return out, nil
	}
}
