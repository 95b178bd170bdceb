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
	"io"
	"net/http"
	"os"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/httpclient"
)

const cohereBatchSize = 96

var cohereSupportedModels = []string{
	"embed-english-v3.0", "embed-multilingual-v3.0",
	"embed-english-light-v3.0", "embed-multilingual-light-v3.0",
}

type cohereEmbeddingClient struct {
	client      *httpclient.Client
	apiKey      string
	baseURL     string
	model       string
	dims        int
	envVars     []string
	retryPolicy config.RetryPolicy
}

type cohereEmbedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}

func newCohereEmbeddingClient(ref config.ModelReference) (EmbeddingClient, error) {
	apiKey := apiKeyFor(ref, "COHERE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("no Cohere API key found (checked %q and COHERE_API_KEY)", ref.EnvBinding)
	}
	model := ref.DeploymentName
	if model == "" {
		model = "embed-english-v3.0"
	}
	baseURL := os.Getenv("COHERE_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.cohere.ai/v1"
	}
	return &cohereEmbeddingClient{
		client: httpclient.New(
			httpclient.WithRetryStrategy(func(int) httpclient.RetryStrategy { return httpclient.NoRetry }),
		),
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		dims:        cohereDimension(model),
		envVars:     vendorEnvVars(ref, "COHERE_API_KEY"),
		retryPolicy: ref.RetryPolicy,
	}, nil
}

func cohereDimension(model string) int {
	switch model {
	case "embed-english-light-v3.0", "embed-multilingual-light-v3.0":
		return 384
	default:
		return 1024
	}
}

func (c *cohereEmbeddingClient) ModelName() string         { return c.model }
func (c *cohereEmbeddingClient) Dimensions() int           { return c.dims }
func (c *cohereEmbeddingClient) Close() error              { return nil }
func (c *cohereEmbeddingClient) RequiredEnvVars() []string { return c.envVars }
func (c *cohereEmbeddingClient) SupportedModels() []string { return cohereSupportedModels }

// HealthCheck lists models, treating a 200 response as reachable and
// authenticated.
func (c *cohereEmbeddingClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Embed sends texts to Cohere in batches of cohereBatchSize, Cohere's
// own per-request limit.
func (c *cohereEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += cohereBatchSize {
		end := i + cohereBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := withRetry(ctx, c.retryPolicy, func(ctx context.Context) ([][]float32, error) {
			return c.embedBatch(ctx, texts[i:end])
		})
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *cohereEmbeddingClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(cohereEmbedRequest{Texts: texts, Model: c.model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere embeddings: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cohere response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp cohereErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return nil, newHTTPStatusError(resp.StatusCode, fmt.Errorf("cohere API error: %s", errResp.Message))
		}
		return nil, newHTTPStatusError(resp.StatusCode, fmt.Errorf("cohere API returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var decoded cohereEmbedResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode cohere response: %w", err)
	}
	return decoded.Embeddings, nil
}

var _ EmbeddingClient = (*cohereEmbeddingClient)(nil)
