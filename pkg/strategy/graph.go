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

// Package strategy turns a WorkflowDefinition and its resolved agent
// instances into a directed graph of executors, one per supported
// workflow kind (sequential, parallel, group_chat, handoff, router,
// magentic). The Workflow Engine runs the Graph a strategy returns; this
// package owns only construction and validation.
package strategy

import (
	"context"
	"fmt"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
)

// StepOutput is one agent-run's contribution to a graph's execution
// trace. The engine's final-output extraction takes the last one in a
// slice of these: its Value if non-empty, else its last message's text.
type StepOutput struct {
	StepID   string
	AgentID  string
	Messages []provider.ChatMessage
	Value    string
}

// Graph is a constructed, runnable workflow. Run executes the graph to
// completion against input and returns every step's output in execution
// order; the Workflow Engine derives the final output and the emitted
// event stream from this trace.
type Graph interface {
	Kind() config.WorkflowKind
	Run(ctx context.Context, bus *events.Bus, workflowID string, input string) ([]StepOutput, error)
}

// Builder constructs a Graph from a workflow definition and its agents,
// keyed by agent id.
type Builder func(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error)

// Validator returns validation errors for a workflow definition before
// any executor is constructed. An empty slice means the definition is
// valid for this strategy.
type Validator func(def config.WorkflowDefinition) []string

// Registry maps a WorkflowKind to the Builder/Validator pair that
// implements it.
type Registry struct {
	builders   map[config.WorkflowKind]Builder
	validators map[config.WorkflowKind]Validator
}

// NewRegistry returns a Registry pre-populated with all six canonical
// strategies.
func NewRegistry() *Registry {
	r := &Registry{
		builders:   make(map[config.WorkflowKind]Builder),
		validators: make(map[config.WorkflowKind]Validator),
	}
	r.register(config.WorkflowSequential, buildSequential, validateSequential)
	r.register(config.WorkflowParallel, buildParallel, validateParallel)
	r.register(config.WorkflowGroupChat, buildGroupChat, validateGroupChat)
	r.register(config.WorkflowHandoff, buildHandoff, validateHandoff)
	r.register(config.WorkflowRouter, buildRouter, validateRouter)
	r.register(config.WorkflowMagentic, buildMagentic, validateMagentic)
	return r
}

func (r *Registry) register(kind config.WorkflowKind, b Builder, v Validator) {
	r.builders[kind] = b
	r.validators[kind] = v
}

// Validate runs the strategy-specific validation for def.Kind. Returns
// an error naming every validation failure if any are found.
func (r *Registry) Validate(def config.WorkflowDefinition) error {
	validate, ok := r.validators[def.Kind]
	if !ok {
		return fmt.Errorf("unknown workflow kind %q", def.Kind)
	}
	if errs := validate(def); len(errs) > 0 {
		return fmt.Errorf("workflow validation failed: %v", errs)
	}
	return nil
}

// Build validates def and, if valid, constructs the Graph for its kind.
func (r *Registry) Build(def config.WorkflowDefinition, agents map[string]*agent.Instance) (Graph, error) {
	if err := r.Validate(def); err != nil {
		return nil, err
	}
	build, ok := r.builders[def.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown workflow kind %q", def.Kind)
	}
	return build(def, agents)
}

// extractContent turns an agent's chat response into the plain string
// reported in AGENT_RESPONSE events: the response's own text, which is
// "" when the response has none.
func extractContent(resp provider.ChatResponse) string {
	return resp.Content
}

func lastUserMessage(messages []provider.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
