package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
)

func TestVendorOfDispatchesByDeploymentNamePrefix(t *testing.T) {
	cases := []struct {
		ref  config.ModelReference
		want string
	}{
		{config.ModelReference{DeploymentName: "claude-3-5-sonnet-20241022"}, "anthropic"},
		{config.ModelReference{DeploymentName: "gpt-4o"}, "openai"},
		{config.ModelReference{DeploymentName: "text-embedding-3-small"}, "openai"},
		{config.ModelReference{DeploymentName: "embed-english-v3.0"}, "cohere"},
		{config.ModelReference{DeploymentName: "llama3", ProviderKind: config.ProviderLocalEndpoint}, "ollama"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, vendorOf(tc.ref))
	}
}

func TestNewChatClientRejectsUnrecognizedVendor(t *testing.T) {
	_, err := NewChatClient(config.ModelReference{DeploymentName: "mystery-model-9000"})
	require.Error(t, err)
}

func TestNewEmbeddingClientRejectsUnrecognizedVendor(t *testing.T) {
	_, err := NewEmbeddingClient(config.ModelReference{DeploymentName: "mystery-model-9000"})
	require.Error(t, err)
}

func TestNewAnthropicChatClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := newAnthropicChatClient(config.ModelReference{DeploymentName: "claude-3-5-sonnet-20241022", EnvBinding: "MISSING_KEY"})
	require.Error(t, err)
}

func TestNewOpenAIChatClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := newOpenAIChatClient(config.ModelReference{DeploymentName: "gpt-4o", EnvBinding: "MISSING_KEY"})
	require.Error(t, err)
}

func TestApiKeyForPrefersEnvBindingOverFallback(t *testing.T) {
	t.Setenv("CUSTOM_BINDING", "bound-key")
	t.Setenv("OPENAI_API_KEY", "fallback-key")
	assert.Equal(t, "bound-key", apiKeyFor(config.ModelReference{EnvBinding: "CUSTOM_BINDING"}, "OPENAI_API_KEY"))
}

func TestApiKeyForFallsBackWhenEnvBindingUnset(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "fallback-key")
	assert.Equal(t, "fallback-key", apiKeyFor(config.ModelReference{EnvBinding: "UNSET_BINDING"}, "OPENAI_API_KEY"))
}

func TestBuildRequestMapsRolesAndToolSpecs(t *testing.T) {
	client := &openAIChatClient{model: "gpt-4o"}
	req := client.buildRequest([]ChatMessage{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleTool, Content: "42", ToolCallID: "call_1", ToolName: "add"},
	}, []ToolSpec{
		{Name: "add", Description: "adds numbers", Parameters: config.ParameterSchema{Type: config.ParamObject}},
	})

	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "tool", req.Messages[3].Role)
	assert.Equal(t, "call_1", req.Messages[3].ToolCallID)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "add", req.Tools[0].Function.Name)
}

func TestCohereDimensionKnownModels(t *testing.T) {
	assert.Equal(t, 384, cohereDimension("embed-english-light-v3.0"))
	assert.Equal(t, 1024, cohereDimension("embed-english-v3.0"))
	assert.Equal(t, 1024, cohereDimension("some-unknown-model"))
}

func TestToOllamaMessagesPreservesOrderAndRole(t *testing.T) {
	out := toOllamaMessages([]ChatMessage{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
}

func TestChatRegistryResolveCachesClient(t *testing.T) {
	reg := NewChatRegistry()
	built := 0
	stub := &stubChatClient{name: "stub"}
	require.NoError(t, reg.Register("a", stub))
	built++

	first, err := reg.Resolve("a", config.ModelReference{})
	require.NoError(t, err)
	second, err := reg.Resolve("a", config.ModelReference{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}

type stubChatClient struct{ name string }

func (s *stubChatClient) ModelName() string { return s.name }
func (s *stubChatClient) Complete(_ context.Context, _ []ChatMessage, _ []ToolSpec) (ChatResponse, error) {
	return ChatResponse{}, nil
}
func (s *stubChatClient) Stream(_ context.Context, _ []ChatMessage, _ []ToolSpec) (<-chan StreamEvent, error) {
	return nil, nil
}
func (s *stubChatClient) Close() error { return nil }
func (s *stubChatClient) RequiredEnvVars() []string          { return nil }
func (s *stubChatClient) SupportedModels() []string          { return nil }
func (s *stubChatClient) HealthCheck(_ context.Context) bool { return true }

var _ ChatClient = (*stubChatClient)(nil)
