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

// Package runner runs a single agent without the caller having to
// declare a full workflow around it: a degenerate-case optimisation
// over pkg/engine for the common "just call this agent" use.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/engine"
	"github.com/kadirpekel/fluxo/pkg/events"
)

// Runner builds and runs a one-step sequential workflow around a
// single agent definition, so the engine's build machinery, strategy
// graph, and final-output extraction are exercised identically to a
// full workflow run. It holds no per-run state.
type Runner struct {
	Engine *engine.Engine
}

// New returns a Runner backed by eng. Events the underlying workflow
// emits (AGENT_START/AGENT_RESPONSE, WORKFLOW_START/COMPLETE/ERROR)
// and the runner's own AGENT_RUN_START/AGENT_RUN_COMPLETE all flow
// through eng.Bus.
func New(eng *engine.Engine) *Runner {
	return &Runner{Engine: eng}
}

// Run invokes the agent identified by agentID, built from def, against
// input, and returns its final response text. AGENT_RUN_START is
// emitted before the underlying workflow runs and AGENT_RUN_COMPLETE
// after it succeeds; a failure surfaces the WORKFLOW_ERROR the
// embedded workflow already emitted, with no separate event of its
// own.
func (r *Runner) Run(ctx context.Context, agentID string, def config.AgentDefinition, input string) (string, error) {
	start := time.Now()

	wfDef := config.WorkflowDefinition{
		Kind:  config.WorkflowSequential,
		Steps: []config.WorkflowStep{{ID: agentID, Kind: config.StepKindAgent, AgentID: agentID}},
	}
	wf, err := r.Engine.Build(fmt.Sprintf("run-%s", agentID), agentID, wfDef, map[string]config.AgentDefinition{agentID: def})
	if err != nil {
		return "", err
	}

	r.Engine.Bus.EmitSimple(events.TypeAgentRunStart, events.AgentRunStartPayload{
		AgentName: agentID, AgentRole: def.Role, ToolsCount: len(def.ToolIDs), Input: input,
	})

	output, _, err := wf.Run(ctx, input)
	if err != nil {
		return "", err
	}

	r.Engine.Bus.EmitSimple(events.TypeAgentRunComplete, events.AgentRunCompletePayload{
		AgentName: agentID, Output: output, DurationMS: time.Since(start).Milliseconds(),
	})
	return output, nil
}
