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

// Package provider abstracts chat and embedding backends behind two
// small interfaces (ChatClient, EmbeddingClient) and the registries that
// build them from a ModelReference.
package provider

import (
	"context"
	"fmt"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/registry"
)

// Role identifies who authored a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ChatMessage is the provider-agnostic message shape every ChatClient
// implementation converts to and from its vendor's wire format.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolSpec describes a callable tool as presented to a chat model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  config.ParameterSchema
}

// ChatResponse is the result of a non-streaming chat completion.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// StreamEvent is one increment of a streaming chat completion.
type StreamEvent struct {
	TextDelta string
	ToolCall  *ToolCall
	Done      bool
	Err       error
}

// ChatClient is the provider-agnostic interface every chat backend
// (vendor-hosted, vendor-native, local-endpoint) implements.
type ChatClient interface {
	ModelName() string
	Complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error)
	Stream(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (<-chan StreamEvent, error)
	Close() error
	// RequiredEnvVars names the environment variables this client
	// looked at to find credentials, in the order it checked them.
	RequiredEnvVars() []string
	// SupportedModels lists the deployment names this vendor backend is
	// known to serve. Not exhaustive for vendors whose catalogue changes
	// independently of this build.
	SupportedModels() []string
	// HealthCheck reports whether the backend is currently reachable
	// and authenticated, without performing a chat completion.
	HealthCheck(ctx context.Context) bool
}

// EmbeddingClient embeds text into vectors for the RAG runtime.
type EmbeddingClient interface {
	ModelName() string
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
	// RequiredEnvVars names the environment variables this client
	// looked at to find credentials, in the order it checked them.
	RequiredEnvVars() []string
	// SupportedModels lists the deployment names this vendor backend is
	// known to serve.
	SupportedModels() []string
	// HealthCheck reports whether the backend is currently reachable
	// and authenticated, without performing an embedding call.
	HealthCheck(ctx context.Context) bool
}

// ChatRegistry resolves ModelReferences into live ChatClients, built
// once and reused across agents.
type ChatRegistry struct {
	*registry.BaseRegistry[ChatClient]
}

// NewChatRegistry creates an empty ChatRegistry.
func NewChatRegistry() *ChatRegistry {
	return &ChatRegistry{BaseRegistry: registry.NewBaseRegistry[ChatClient]()}
}

// Resolve returns the ChatClient registered under id, building and
// caching it from ref on first use.
func (r *ChatRegistry) Resolve(id string, ref config.ModelReference) (ChatClient, error) {
	if client, ok := r.Get(id); ok {
		return client, nil
	}
	client, err := NewChatClient(ref)
	if err != nil {
		return nil, fmt.Errorf("build chat client %q: %w", id, err)
	}
	if err := r.Register(id, client); err != nil {
		return nil, err
	}
	return client, nil
}

// EmbeddingRegistry resolves ModelReferences into live EmbeddingClients.
type EmbeddingRegistry struct {
	*registry.BaseRegistry[EmbeddingClient]
}

// NewEmbeddingRegistry creates an empty EmbeddingRegistry.
func NewEmbeddingRegistry() *EmbeddingRegistry {
	return &EmbeddingRegistry{BaseRegistry: registry.NewBaseRegistry[EmbeddingClient]()}
}

// Resolve returns the EmbeddingClient registered under id, building and
// caching it from ref on first use.
func (r *EmbeddingRegistry) Resolve(id string, ref config.ModelReference) (EmbeddingClient, error) {
	if client, ok := r.Get(id); ok {
		return client, nil
	}
	client, err := NewEmbeddingClient(ref)
	if err != nil {
		return nil, fmt.Errorf("build embedding client %q: %w", id, err)
	}
	if err := r.Register(id, client); err != nil {
		return nil, err
	}
	return client, nil
}

// NewChatClient dispatches to a vendor-specific constructor based on
// ref.DeploymentName's recognized vendor prefix.
func NewChatClient(ref config.ModelReference) (ChatClient, error) {
	switch vendorOf(ref) {
	case "anthropic":
		return newAnthropicChatClient(ref)
	case "openai":
		return newOpenAIChatClient(ref)
	case "ollama":
		return newOllamaChatClient(ref)
	default:
		return nil, fmt.Errorf("unrecognized chat vendor for deployment %q", ref.DeploymentName)
	}
}

// NewEmbeddingClient dispatches to a vendor-specific embedding
// constructor based on ref.DeploymentName's recognized vendor prefix.
func NewEmbeddingClient(ref config.ModelReference) (EmbeddingClient, error) {
	switch vendorOf(ref) {
	case "openai":
		return newOpenAIEmbeddingClient(ref)
	case "cohere":
		return newCohereEmbeddingClient(ref)
	case "ollama":
		return newOllamaEmbeddingClient(ref)
	default:
		return nil, fmt.Errorf("unrecognized embedding vendor for deployment %q", ref.DeploymentName)
	}
}

func vendorOf(ref config.ModelReference) string {
	switch ref.ProviderKind {
	case config.ProviderLocalEndpoint:
		return "ollama"
	}
	for _, prefix := range []string{"claude", "anthropic"} {
		if hasPrefix(ref.DeploymentName, prefix) {
			return "anthropic"
		}
	}
	for _, prefix := range []string{"gpt", "o1", "o3", "text-embedding", "openai"} {
		if hasPrefix(ref.DeploymentName, prefix) {
			return "openai"
		}
	}
	if hasPrefix(ref.DeploymentName, "embed") {
		return "cohere"
	}
	return ref.EnvBinding
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
