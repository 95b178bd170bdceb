package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max results"`
}

func TestRegisterTypedGeneratesSchemaAndDecodesArguments(t *testing.T) {
	schema, err := RegisterTyped("testpkg.Search", func(ctx context.Context, args searchArgs) (map[string]any, error) {
		return map[string]any{"query": args.Query, "limit": args.Limit}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, config.ParamObject, schema.Type)
	assert.Contains(t, schema.Properties, "query")

	adapter := NewLocalAdapter()
	def := config.ToolDefinition{Name: "search", Transport: config.TransportLocal, Source: "testpkg.Search"}
	result, err := adapter.Execute(context.Background(), def, Call{
		ToolName:  "search",
		Arguments: map[string]any{"query": "go generics", "limit": 5},
	})
	require.NoError(t, err)
	m := result.(map[string]any)
	assert.Equal(t, "go generics", m["query"])
	assert.EqualValues(t, 5, m["limit"])
}

func TestLocalAdapterReturnsNotFoundForUnregisteredSource(t *testing.T) {
	adapter := NewLocalAdapter()
	def := config.ToolDefinition{Name: "ghost", Transport: config.TransportLocal, Source: "nowhere.Ghost"}
	_, err := adapter.Execute(context.Background(), def, Call{ToolName: "ghost"})
	require.Error(t, err)
	assert.Equal(t, ErrorNotFound, Classify(err))
}
