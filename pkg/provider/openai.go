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
	"errors"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kadirpekel/fluxo/pkg/config"
)

// openAISupportedChatModels is the curated set of deployment names this
// build is known to work against.
var openAISupportedChatModels = []string{
	"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "o1", "o3-mini",
}

type openAIChatClient struct {
	client      *openai.Client
	model       string
	envVars     []string
	retryPolicy config.RetryPolicy
}

func newOpenAIChatClient(ref config.ModelReference) (ChatClient, error) {
	apiKey := apiKeyFor(ref, "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("no OpenAI API key found (checked %q and OPENAI_API_KEY)", ref.EnvBinding)
	}
	return &openAIChatClient{
		client:      openai.NewClient(apiKey),
		model:       ref.DeploymentName,
		envVars:     vendorEnvVars(ref, "OPENAI_API_KEY"),
		retryPolicy: ref.RetryPolicy,
	}, nil
}

func apiKeyFor(ref config.ModelReference, fallbackEnv string) string {
	if ref.EnvBinding != "" {
		if v := os.Getenv(ref.EnvBinding); v != "" {
			return v
		}
	}
	return os.Getenv(fallbackEnv)
}

// vendorEnvVars lists ref.EnvBinding (if set and distinct) ahead of a
// vendor's conventional fallback variable, matching the order apiKeyFor
// actually checks them in.
func vendorEnvVars(ref config.ModelReference, fallbackEnv string) []string {
	if ref.EnvBinding != "" && ref.EnvBinding != fallbackEnv {
		return []string{ref.EnvBinding, fallbackEnv}
	}
	return []string{fallbackEnv}
}

func (c *openAIChatClient) ModelName() string         { return c.model }
func (c *openAIChatClient) RequiredEnvVars() []string { return c.envVars }
func (c *openAIChatClient) SupportedModels() []string { return openAISupportedChatModels }

// HealthCheck lists models, treating any response as reachable and
// authenticated.
func (c *openAIChatClient) HealthCheck(ctx context.Context) bool {
	_, err := c.client.ListModels(ctx)
	return err == nil
}

func (c *openAIChatClient) Complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	return withRetry(ctx, c.retryPolicy, func(ctx context.Context) (ChatResponse, error) {
		return c.complete(ctx, messages, tools)
	})
}

func (c *openAIChatClient) complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	req := c.buildRequest(messages, tools)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai returned no choices")
	}
	choice := resp.Choices[0].Message

	out := ChatResponse{
		Content:      choice.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

func (c *openAIChatClient) Stream(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (<-chan StreamEvent, error) {
	req := c.buildRequest(messages, tools)
	req.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion stream: %w", err)
	}

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					out <- StreamEvent{Done: true}
					return
				}
				out <- StreamEvent{Err: err}
				return
			}
			if len(resp.Choices) > 0 {
				out <- StreamEvent{TextDelta: resp.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}

func (c *openAIChatClient) Close() error { return nil }

func (c *openAIChatClient) buildRequest(messages []ChatMessage, tools []ToolSpec) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{Model: c.model}

	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case RoleSystem:
			msg.Role = openai.ChatMessageRoleSystem
		case RoleUser:
			msg.Role = openai.ChatMessageRoleUser
		case RoleAssistant:
			msg.Role = openai.ChatMessageRoleAssistant
		case RoleTool:
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.ToolName
		}
		req.Messages = append(req.Messages, msg)
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

var _ ChatClient = (*openAIChatClient)(nil)

var openAISupportedEmbeddingModels = []string{
	"text-embedding-3-small", "text-embedding-3-large", "text-embedding-ada-002",
}

type openAIEmbeddingClient struct {
	client      *openai.Client
	model       string
	dims        int
	envVars     []string
	retryPolicy config.RetryPolicy
}

func newOpenAIEmbeddingClient(ref config.ModelReference) (EmbeddingClient, error) {
	apiKey := apiKeyFor(ref, "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("no OpenAI API key found (checked %q and OPENAI_API_KEY)", ref.EnvBinding)
	}
	return &openAIEmbeddingClient{
		client:      openai.NewClient(apiKey),
		model:       ref.DeploymentName,
		dims:        1536,
		envVars:     vendorEnvVars(ref, "OPENAI_API_KEY"),
		retryPolicy: ref.RetryPolicy,
	}, nil
}

func (c *openAIEmbeddingClient) ModelName() string        { return c.model }
func (c *openAIEmbeddingClient) Dimensions() int           { return c.dims }
func (c *openAIEmbeddingClient) Close() error              { return nil }
func (c *openAIEmbeddingClient) RequiredEnvVars() []string { return c.envVars }
func (c *openAIEmbeddingClient) SupportedModels() []string { return openAISupportedEmbeddingModels }

func (c *openAIEmbeddingClient) HealthCheck(ctx context.Context) bool {
	_, err := c.client.ListModels(ctx)
	return err == nil
}

func (c *openAIEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, c.retryPolicy, func(ctx context.Context) ([][]float32, error) {
		return c.embed(ctx, texts)
	})
}

func (c *openAIEmbeddingClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

var _ EmbeddingClient = (*openAIEmbeddingClient)(nil)
