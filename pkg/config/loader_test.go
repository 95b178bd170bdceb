package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
version: "1"
name: demo
resources:
  models:
    planner:
      provider_kind: vendor-native
      deployment_name: claude-sonnet-4
  tools:
    - name: search
      description: web search
      transport: local
      source: tools.Search
agents:
  - id: researcher
    model_ref: planner
    tool_ids: [search]
workflow:
  kind: sequential
  start_id: step-1
  steps:
    - id: step-1
      kind: agent
      agent_id: researcher
`

func TestLoadBytesAcceptsValidDocument(t *testing.T) {
	cfg, err := LoadBytes([]byte(validYAML), ".yaml")
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, WorkflowSequential, cfg.Workflow.Kind)
	require.Contains(t, cfg.Resources.Models, "planner")
	assert.Equal(t, "planner", cfg.Resources.Models["planner"].ID)
}

func TestLoadBytesRejectsUnresolvedModelRef(t *testing.T) {
	bad := `
version: "1"
name: demo
agents:
  - id: researcher
    model_ref: missing
workflow:
  kind: sequential
  steps:
    - id: step-1
      kind: agent
      agent_id: researcher
`
	_, err := LoadBytes([]byte(bad), ".yaml")
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Error(), `model_ref "missing"`)
}

func TestLoadBytesReportsAllViolationsNotJustFirst(t *testing.T) {
	bad := `
version: "1"
name: demo
agents:
  - id: a
    model_ref: missing
  - id: a
    model_ref: missing
workflow:
  kind: bogus
  steps: []
`
	_, err := LoadBytes([]byte(bad), ".yaml")
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(verr.Errors), 3)
}

func TestValidateCatchesUnresolvedToolReference(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Name:    "demo",
		Agents: []AgentDefinition{
			{ID: "a", ModelRef: "m", ToolIDs: []string{"ghost"}},
		},
		Resources: Resources{Models: map[string]ModelReference{"m": {}}},
		Workflow:  WorkflowDefinition{Kind: WorkflowSequential},
	}
	errs := Validate(cfg)
	assert.Contains(t, strJoin(errs), `tool_ids references undeclared tool "ghost"`)
}

func strJoin(ss []string) string {
	out := ""
	for _, s := range ss {
		out += s + "\n"
	}
	return out
}
