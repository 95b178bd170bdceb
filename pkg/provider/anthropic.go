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

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kadirpekel/fluxo/pkg/config"
)

// anthropicSupportedModels is the curated set of deployment names this
// build is known to work against; Anthropic's catalogue moves faster
// than this list, so it is advisory rather than exhaustive.
var anthropicSupportedModels = []string{
	"claude-opus-4-1-20250805",
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

type anthropicChatClient struct {
	client      anthropic.Client
	model       string
	envVars     []string
	retryPolicy config.RetryPolicy
}

func newAnthropicChatClient(ref config.ModelReference) (ChatClient, error) {
	envVars := anthropicEnvVars(ref)
	apiKey := os.Getenv(ref.EnvBinding)
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no Anthropic API key found (checked %q and ANTHROPIC_API_KEY)", ref.EnvBinding)
	}
	return &anthropicChatClient{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       ref.DeploymentName,
		envVars:     envVars,
		retryPolicy: ref.RetryPolicy,
	}, nil
}

func anthropicEnvVars(ref config.ModelReference) []string {
	if ref.EnvBinding != "" && ref.EnvBinding != "ANTHROPIC_API_KEY" {
		return []string{ref.EnvBinding, "ANTHROPIC_API_KEY"}
	}
	return []string{"ANTHROPIC_API_KEY"}
}

func (c *anthropicChatClient) ModelName() string         { return c.model }
func (c *anthropicChatClient) RequiredEnvVars() []string { return c.envVars }
func (c *anthropicChatClient) SupportedModels() []string { return anthropicSupportedModels }

// HealthCheck lists models with a minimal page size, treating any
// response (even an empty one) as reachable and authenticated.
func (c *anthropicChatClient) HealthCheck(ctx context.Context) bool {
	_, err := c.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)})
	return err == nil
}

func (c *anthropicChatClient) Complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	return withRetry(ctx, c.retryPolicy, func(ctx context.Context) (ChatResponse, error) {
		return c.complete(ctx, messages, tools)
	})
}

func (c *anthropicChatClient) complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	params := c.buildParams(messages, tools)
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	out := ChatResponse{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(variant.Input, &args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: variant.ID, Name: variant.Name, Arguments: args})
		}
	}
	return out, nil
}

func (c *anthropicChatClient) Stream(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (<-chan StreamEvent, error) {
	params := c.buildParams(messages, tools)
	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out <- StreamEvent{Err: err}
				return
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
					out <- StreamEvent{TextDelta: textDelta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamEvent{Err: err}
			return
		}
		out <- StreamEvent{Done: true}
	}()
	return out, nil
}

func (c *anthropicChatClient) Close() error { return nil }

func (c *anthropicChatClient) buildParams(messages []ChatMessage, tools []ToolSpec) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = []anthropic.TextBlockParam{{Text: m.Content}}
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case RoleTool:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	for _, t := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schemaProperties(t.Parameters),
				},
			},
		})
	}

	return params
}

func schemaProperties(schema config.ParameterSchema) any {
	props := map[string]any{}
	for name, p := range schema.Properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
	}
	return props
}

var _ ChatClient = (*anthropicChatClient)(nil)
