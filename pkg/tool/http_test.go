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

package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
)

func TestHTTPAdapterGetEncodesArgumentsAsQueryParams(t *testing.T) {
	var gotQuery string
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "search", Transport: config.TransportHTTP, Source: server.URL, Method: http.MethodGet}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "search", Arguments: map[string]any{"q": "go"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "q=go", gotQuery)
}

func TestHTTPAdapterPostSendsArgumentsAsJSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "create", Transport: config.TransportHTTP, Source: server.URL}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "create", Arguments: map[string]any{"name": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "x", gotBody["name"])
}

func TestHTTPAdapterResolvesTokenAndEnvPlaceholdersInHeaders(t *testing.T) {
	t.Setenv("TOOL_HTTP_TEST_KEY", "env-value")

	var gotAuth, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Token-Header")
		gotAPIKey = r.Header.Get("X-Api-Key")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{
		Name: "t", Transport: config.TransportHTTP, Source: server.URL,
		Headers: map[string]string{
			"X-Token-Header": "prefix-{token}",
			"X-Api-Key":      "{TOOL_HTTP_TEST_KEY}",
		},
	}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "t", AuthToken: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "prefix-secret", gotAuth)
	assert.Equal(t, "env-value", gotAPIKey)
}

func TestHTTPAdapterAppliesBearerAuthScheme(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "t", Transport: config.TransportHTTP, Source: server.URL, Auth: "bearer"}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "t", AuthToken: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", gotAuth)
}

func TestHTTPAdapterAppliesBasicAuthScheme(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "t", Transport: config.TransportHTTP, Source: server.URL, Auth: "basic"}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "t", AuthToken: "user:pass"})
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlcjpwYXNz", gotAuth)
}

func TestHTTPAdapterExtractsResponsePath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"result": 42}})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "t", Transport: config.TransportHTTP, Source: server.URL, ResponsePath: "data.result"}
	result, err := adapter.Execute(context.Background(), def, Call{ToolName: "t"})
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestHTTPAdapterClassifiesStatusCodes(t *testing.T) {
	for _, tc := range []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusTooManyRequests, ErrorRateLimited},
		{http.StatusInternalServerError, ErrorTransientStatus},
		{http.StatusNotFound, ErrorPermanent},
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{})
		}))

		adapter := NewHTTPAdapter()
		def := config.ToolDefinition{Name: "t", Transport: config.TransportHTTP, Source: server.URL}
		_, err := adapter.Execute(context.Background(), def, Call{ToolName: "t"})
		require.Error(t, err)
		assert.Equal(t, tc.kind, Classify(err))
		server.Close()
	}
}

func TestHTTPAdapterValidateRejectsNonHTTPSource(t *testing.T) {
	adapter := NewHTTPAdapter()
	violations := adapter.Validate(config.ToolDefinition{Name: "t", Source: "not-a-url"})
	assert.NotEmpty(t, violations)
}

func TestHTTPAdapterValidateRejectsInvalidMethodAndAuth(t *testing.T) {
	adapter := NewHTTPAdapter()
	violations := adapter.Validate(config.ToolDefinition{Name: "t", Source: "https://example.com", Method: "FETCH", Auth: "digest"})
	assert.Len(t, violations, 2)
}

func TestHTTPAdapterValidateAcceptsWellFormedDefinition(t *testing.T) {
	adapter := NewHTTPAdapter()
	violations := adapter.Validate(config.ToolDefinition{Name: "t", Source: "https://example.com", Method: "GET", Auth: "bearer"})
	assert.Empty(t, violations)
}

func TestHTTPAdapterVerifySSLFalseAcceptsSelfSignedCert(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	insecure := false
	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "t", Transport: config.TransportHTTP, Source: server.URL, VerifySSL: &insecure}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "t"})
	require.NoError(t, err)
}

func TestHTTPAdapterVerifySSLDefaultRejectsSelfSignedCert(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	adapter := NewHTTPAdapter()
	def := config.ToolDefinition{Name: "t", Transport: config.TransportHTTP, Source: server.URL}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "t"})
	require.Error(t, err)
}

func TestResolveHeadersLeavesUnresolvedPlaceholdersUntouched(t *testing.T) {
	headers := resolveHeaders(map[string]string{"X-Missing": "{NOT_A_REAL_ENV_VAR}"}, "")
	assert.Equal(t, "{NOT_A_REAL_ENV_VAR}", headers["X-Missing"])
}
