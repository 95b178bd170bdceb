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

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/fluxoerr"
)

func minimalConfig() *config.Config {
	return &config.Config{
		Version: "1",
		Name:    "demo",
		Resources: config.Resources{
			Models: map[string]config.ModelReference{
				"model-a": {ID: "model-a", ProviderKind: config.ProviderLocalEndpoint, DeploymentName: "ollama/llama3"},
			},
		},
		Agents: []config.AgentDefinition{
			{ID: "researcher", ModelRef: "model-a"},
		},
		Workflow: config.WorkflowDefinition{
			Kind:  config.WorkflowSequential,
			Steps: []config.WorkflowStep{{ID: "s1", Kind: config.StepKindAgent, AgentID: "researcher"}},
		},
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := minimalConfig()
	cfg.Workflow.Steps[0].AgentID = "unknown"

	_, err := New(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Equal(t, fluxoerr.ConfigInvalid, fluxoerr.Classify(err))
}

func TestNewBuildsEngineAndRunnerFromValidConfig(t *testing.T) {
	cfg := minimalConfig()

	rt, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.NotNil(t, rt.Engine)
	assert.NotNil(t, rt.Runner)
	assert.Nil(t, rt.VectorStore)
}

func TestRunAgentRejectsUndeclaredAgent(t *testing.T) {
	cfg := minimalConfig()
	rt, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)

	_, err = rt.RunAgent(context.Background(), "missing", "go")
	require.Error(t, err)
	assert.Equal(t, fluxoerr.ReferenceUnresolved, fluxoerr.Classify(err))
}

func TestCloseIsSafeWithoutRAG(t *testing.T) {
	cfg := minimalConfig()
	rt, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.NoError(t, rt.Close())
}
