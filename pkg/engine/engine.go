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

// Package engine builds a workflow definition into a runnable strategy
// graph and drives it to completion, extracting a single final output
// from whatever execution trace the graph produced.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/fluxoerr"
	"github.com/kadirpekel/fluxo/pkg/strategy"
)

const defaultMaxIterations = 100

// Engine builds Workflows from declarative definitions. One Engine is
// shared by every workflow the runtime builds; it holds no per-run
// state itself.
type Engine struct {
	Agents        *agent.Factory
	Strategies    *strategy.Registry
	Bus           *events.Bus
	MaxIterations int // 0 uses defaultMaxIterations
}

// Workflow is a built, runnable graph bound to one workflow id. Like
// the agent instances it wraps, a Workflow is built fresh per run and
// discarded afterwards — its executor state never survives past Run.
type Workflow struct {
	ID            string
	Name          string
	Graph         strategy.Graph
	bus           *events.Bus
	maxIterations int
}

// Build resolves every step's agent_id against agentDefs via the Agent
// Factory, synthesises a manager agent from manager_model_ref when the
// workflow kind needs one, and delegates graph construction to the
// strategy registry.
func (e *Engine) Build(workflowID, name string, def config.WorkflowDefinition, agentDefs map[string]config.AgentDefinition) (*Workflow, error) {
	agents := make(map[string]*agent.Instance)

	for _, step := range def.Steps {
		if step.AgentID == "" {
			continue // human steps carry no agent_id
		}
		if _, built := agents[step.AgentID]; built {
			continue
		}
		adef, ok := agentDefs[step.AgentID]
		if !ok {
			return nil, fluxoerr.Newf(fluxoerr.ReferenceUnresolved,
				"workflow %q: step %q references unknown agent %q", name, step.ID, step.AgentID)
		}
		inst, err := e.Agents.Build(adef, step.InputTemplate)
		if err != nil {
			return nil, fluxoerr.New(fluxoerr.ProviderMisconfigured, fmt.Errorf("building agent %q: %w", adef.ID, err))
		}
		agents[step.AgentID] = inst
	}

	if needsManager(def.Kind) && def.ManagerModelRef != "" {
		managerDef := config.AgentDefinition{
			ID:           strategy.ManagerAgentID,
			Role:         "Workflow manager",
			ModelRef:     def.ManagerModelRef,
			Instructions: def.ManagerInstructions,
		}
		inst, err := e.Agents.Build(managerDef, "")
		if err != nil {
			return nil, fluxoerr.New(fluxoerr.ProviderMisconfigured, fmt.Errorf("building manager agent: %w", err))
		}
		agents[strategy.ManagerAgentID] = inst
	}

	graph, err := e.Strategies.Build(def, agents)
	if err != nil {
		return nil, fluxoerr.New(fluxoerr.ConfigInvalid, err)
	}

	maxIterations := e.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	return &Workflow{ID: workflowID, Name: name, Graph: graph, bus: e.Bus, maxIterations: maxIterations}, nil
}

func needsManager(kind config.WorkflowKind) bool {
	return kind == config.WorkflowGroupChat || kind == config.WorkflowMagentic
}

// Run executes the workflow to completion and returns its final output
// alongside the full execution trace. ctx cancellation is honoured
// cooperatively: in-flight agent/tool calls are allowed to return
// before the run transitions to its error state.
func (w *Workflow) Run(ctx context.Context, input string) (string, []strategy.StepOutput, error) {
	start := time.Now()
	w.bus.EmitSimple(events.TypeWorkflowStart, events.WorkflowStartPayload{WorkflowName: w.Name, Input: input})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var iterations int32
	var budgetExceeded int32
	sub := w.bus.Subscribe(func(events.Event) error {
		if atomic.AddInt32(&iterations, 1) > int32(w.maxIterations) {
			atomic.StoreInt32(&budgetExceeded, 1)
			cancel()
		}
		return nil
	}, events.TypeAgentStart)
	defer w.bus.Unsubscribe(sub)

	outputs, err := w.Graph.Run(runCtx, w.bus, w.ID, input)
	if err != nil {
		classified := w.classifyRunError(err, ctx, atomic.LoadInt32(&budgetExceeded) == 1)
		w.bus.EmitSimple(events.TypeWorkflowError, events.WorkflowErrorPayload{Error: classified.Error()})
		return "", outputs, classified
	}

	output := ExtractFinalOutput(outputs)
	w.bus.EmitSimple(events.TypeWorkflowComplete, events.WorkflowCompletePayload{
		WorkflowName: w.Name, Output: output, DurationMS: time.Since(start).Milliseconds(),
	})
	return output, outputs, nil
}

func (w *Workflow) classifyRunError(err error, callerCtx context.Context, budgetExceeded bool) error {
	if budgetExceeded {
		return fluxoerr.Newf(fluxoerr.IterationBudgetExhausted,
			"workflow %q: exceeded max_iterations=%d", w.Name, w.maxIterations)
	}
	if callerCtx.Err() != nil {
		return fluxoerr.New(fluxoerr.Cancelled, callerCtx.Err())
	}
	return err
}

// ExtractFinalOutput implements the fallback chain used both for a
// full workflow run and for the standalone agent runner: the last
// step's value if non-empty, otherwise the text of the last message in
// the last step's conversation, otherwise "".
func ExtractFinalOutput(outputs []strategy.StepOutput) string {
	if len(outputs) == 0 {
		return ""
	}
	last := outputs[len(outputs)-1]
	if last.Value != "" {
		return last.Value
	}
	if len(last.Messages) > 0 {
		return last.Messages[len(last.Messages)-1].Content
	}
	return ""
}
