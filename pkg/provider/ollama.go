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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/httpclient"
)

// ollamaEmbedMu serializes embedding requests: Ollama's llama runner
// crashes on concurrent embedding calls against the same model.
var ollamaEmbedMu sync.Mutex

var ollamaSupportedModels = []string{"llama3.1", "llama3.2", "mistral", "qwen2.5", "phi3"}

type ollamaChatClient struct {
	client      *httpclient.Client
	host        string
	model       string
	envVars     []string
	retryPolicy config.RetryPolicy
}

func newOllamaChatClient(ref config.ModelReference) (ChatClient, error) {
	host := os.Getenv(ref.EnvBinding)
	if host == "" {
		host = "http://localhost:11434"
	}
	return &ollamaChatClient{
		client:      httpclient.New(),
		host:        host,
		model:       ref.DeploymentName,
		envVars:     ollamaEnvVars(ref),
		retryPolicy: ref.RetryPolicy,
	}, nil
}

func ollamaEnvVars(ref config.ModelReference) []string {
	if ref.EnvBinding != "" {
		return []string{ref.EnvBinding}
	}
	return nil
}

func (c *ollamaChatClient) ModelName() string         { return c.model }
func (c *ollamaChatClient) RequiredEnvVars() []string { return c.envVars }
func (c *ollamaChatClient) SupportedModels() []string { return ollamaSupportedModels }

// HealthCheck hits /api/tags, Ollama's own liveness endpoint.
func (c *ollamaChatClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

func (c *ollamaChatClient) Complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	return withRetry(ctx, c.retryPolicy, func(ctx context.Context) (ChatResponse, error) {
		return c.complete(ctx, messages, tools)
	})
}

func (c *ollamaChatClient) complete(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	body, err := json.Marshal(ollamaChatRequest{Model: c.model, Messages: toOllamaMessages(messages)})
	if err != nil {
		return ChatResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, newHTTPStatusError(resp.StatusCode, fmt.Errorf("ollama chat returned status %d", resp.StatusCode))
	}

	var decoded ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ChatResponse{}, fmt.Errorf("decode ollama response: %w", err)
	}
	return ChatResponse{Content: decoded.Message.Content}, nil
}

func (c *ollamaChatClient) Stream(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (<-chan StreamEvent, error) {
	body, err := json.Marshal(ollamaChatRequest{Model: c.model, Messages: toOllamaMessages(messages), Stream: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama chat stream: %w", err)
	}

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		decoder := json.NewDecoder(resp.Body)
		for {
			var chunk ollamaChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				out <- StreamEvent{Done: true}
				return
			}
			if chunk.Message.Content != "" {
				out <- StreamEvent{TextDelta: chunk.Message.Content}
			}
			if chunk.Done {
				out <- StreamEvent{Done: true}
				return
			}
		}
	}()
	return out, nil
}

func (c *ollamaChatClient) Close() error { return nil }

func toOllamaMessages(messages []ChatMessage) []ollamaChatMessage {
	out := make([]ollamaChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

var _ ChatClient = (*ollamaChatClient)(nil)

var ollamaSupportedEmbeddingModels = []string{"nomic-embed-text", "mxbai-embed-large", "all-minilm"}

type ollamaEmbeddingClient struct {
	client      *httpclient.Client
	host        string
	model       string
	dims        int
	envVars     []string
	retryPolicy config.RetryPolicy
}

func newOllamaEmbeddingClient(ref config.ModelReference) (EmbeddingClient, error) {
	host := os.Getenv(ref.EnvBinding)
	if host == "" {
		host = "http://localhost:11434"
	}
	return &ollamaEmbeddingClient{
		client:      httpclient.New(),
		host:        host,
		model:       ref.DeploymentName,
		dims:        768,
		envVars:     ollamaEnvVars(ref),
		retryPolicy: ref.RetryPolicy,
	}, nil
}

func (c *ollamaEmbeddingClient) ModelName() string         { return c.model }
func (c *ollamaEmbeddingClient) Dimensions() int           { return c.dims }
func (c *ollamaEmbeddingClient) Close() error              { return nil }
func (c *ollamaEmbeddingClient) RequiredEnvVars() []string { return c.envVars }
func (c *ollamaEmbeddingClient) SupportedModels() []string { return ollamaSupportedEmbeddingModels }

func (c *ollamaEmbeddingClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed issues one request per text: Ollama's embedding endpoint takes
// a single prompt, and requests must be serialized (ollamaEmbedMu)
// since the backing llama runner cannot handle concurrent calls.
func (c *ollamaEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := withRetry(ctx, c.retryPolicy, func(ctx context.Context) ([]float32, error) {
			return c.embedOne(ctx, text)
		})
		if err != nil {
			return nil, err
		}
		out[i] = embedding
	}
	return out, nil
}

func (c *ollamaEmbeddingClient) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPStatusError(resp.StatusCode, fmt.Errorf("ollama embeddings returned status %d", resp.StatusCode))
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode ollama embedding: %w", err)
	}
	return decoded.Embedding, nil
}

var _ EmbeddingClient = (*ollamaEmbeddingClient)(nil)
