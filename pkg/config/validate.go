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

package config

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every rule violation found while validating
// a Config, so a caller can report the whole list instead of stopping at
// the first failure.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config invalid: %d error(s):\n  - %s", len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

var validWorkflowKinds = map[WorkflowKind]bool{
	WorkflowSequential: true,
	WorkflowParallel:   true,
	WorkflowGroupChat:  true,
	WorkflowHandoff:    true,
	WorkflowRouter:     true,
	WorkflowMagentic:   true,
}

var validTransports = map[ToolTransport]bool{
	TransportLocal:  true,
	TransportHTTP:   true,
	TransportHosted: true,
	TransportMCP:    true,
	TransportCustom: true,
}

// Validate checks a Config against every structural rule the runtime
// depends on: unique identifiers, resolvable references, well-formed
// tool sources for their declared transport, and a recognized workflow
// kind. It returns every violation found rather than the first.
func Validate(cfg *Config) []string {
	var errs []string

	agentIDs := make(map[string]bool)
	for i, a := range cfg.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("agents[%d]: id must not be empty", i))
			continue
		}
		if agentIDs[a.ID] {
			errs = append(errs, fmt.Sprintf("agents[%d]: duplicate agent id %q", i, a.ID))
		}
		agentIDs[a.ID] = true

		if a.ModelRef == "" {
			errs = append(errs, fmt.Sprintf("agent %q: model_ref must not be empty", a.ID))
		} else if _, ok := cfg.Resources.Models[a.ModelRef]; !ok {
			errs = append(errs, fmt.Sprintf("agent %q: model_ref %q does not resolve to a declared model", a.ID, a.ModelRef))
		}
	}

	toolNames := make(map[string]bool)
	for i, t := range cfg.Resources.Tools {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("resources.tools[%d]: name must not be empty", i))
			continue
		}
		if toolNames[t.Name] {
			errs = append(errs, fmt.Sprintf("resources.tools[%d]: duplicate tool name %q", i, t.Name))
		}
		toolNames[t.Name] = true

		if !validTransports[t.Transport] {
			errs = append(errs, fmt.Sprintf("tool %q: unrecognized transport %q", t.Name, t.Transport))
			continue
		}
		errs = append(errs, validateToolSource(t)...)
	}

	for _, a := range cfg.Agents {
		for _, toolID := range a.ToolIDs {
			if !toolNames[toolID] {
				errs = append(errs, fmt.Sprintf("agent %q: tool_ids references undeclared tool %q", a.ID, toolID))
			}
		}
		if a.KnowledgeConfig != nil && len(a.KnowledgeConfig.Collections) == 0 {
			errs = append(errs, fmt.Sprintf("agent %q: knowledge_config.collections must not be empty when knowledge_config is set", a.ID))
		}
	}

	errs = append(errs, validateWorkflow(cfg, agentIDs)...)

	return errs
}

func validateToolSource(t ToolDefinition) []string {
	var errs []string
	switch t.Transport {
	case TransportLocal:
		if t.Source == "" {
			errs = append(errs, fmt.Sprintf("tool %q: local transport requires a non-empty source (package.Function)", t.Name))
		} else if !strings.Contains(t.Source, ".") {
			errs = append(errs, fmt.Sprintf("tool %q: local source %q must be a dotted package.Function reference", t.Name, t.Source))
		}
	case TransportHTTP:
		if t.Source == "" {
			errs = append(errs, fmt.Sprintf("tool %q: http transport requires a source URL", t.Name))
		} else if !strings.HasPrefix(t.Source, "http://") && !strings.HasPrefix(t.Source, "https://") {
			errs = append(errs, fmt.Sprintf("tool %q: http source %q must be an absolute http(s) URL", t.Name, t.Source))
		}
	case TransportMCP:
		switch t.MCPTransport {
		case "stdio":
			if t.MCPCommand == "" {
				errs = append(errs, fmt.Sprintf("tool %q: mcp stdio transport requires mcp_command", t.Name))
			}
		case "http", "sse", "websocket":
			if t.Source == "" {
				errs = append(errs, fmt.Sprintf("tool %q: mcp %s transport requires a source URL", t.Name, t.MCPTransport))
			}
		default:
			errs = append(errs, fmt.Sprintf("tool %q: mcp_transport %q is not recognized", t.Name, t.MCPTransport))
		}
	case TransportHosted, TransportCustom:
		if t.Source == "" {
			errs = append(errs, fmt.Sprintf("tool %q: %s transport requires a non-empty source", t.Name, t.Transport))
		}
	}
	return errs
}

func validateWorkflow(cfg *Config, agentIDs map[string]bool) []string {
	var errs []string
	wf := cfg.Workflow

	if !validWorkflowKinds[wf.Kind] {
		errs = append(errs, fmt.Sprintf("workflow: unrecognized kind %q", wf.Kind))
		return errs
	}

	stepIDs := make(map[string]bool)
	for i, s := range wf.Steps {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("workflow.steps[%d]: id must not be empty", i))
			continue
		}
		if stepIDs[s.ID] {
			errs = append(errs, fmt.Sprintf("workflow.steps[%d]: duplicate step id %q", i, s.ID))
		}
		stepIDs[s.ID] = true

		if s.Kind == StepKindAgent && s.AgentID != "" && !agentIDs[s.AgentID] {
			errs = append(errs, fmt.Sprintf("workflow step %q: agent_id %q does not resolve to a declared agent", s.ID, s.AgentID))
		}
	}

	for _, s := range wf.Steps {
		if s.NextID != "" && !stepIDs[s.NextID] {
			errs = append(errs, fmt.Sprintf("workflow step %q: next_id %q does not resolve to a declared step", s.ID, s.NextID))
		}
		for _, t := range s.Transitions {
			if !stepIDs[t] && !agentIDs[t] {
				errs = append(errs, fmt.Sprintf("workflow step %q: transition %q does not resolve to a declared step or agent", s.ID, t))
			}
		}
	}

	if wf.StartID != "" && !stepIDs[wf.StartID] {
		errs = append(errs, fmt.Sprintf("workflow: start_id %q does not resolve to a declared step", wf.StartID))
	}

	if wf.Kind == WorkflowGroupChat || wf.Kind == WorkflowMagentic {
		if wf.ManagerModelRef != "" {
			if _, ok := cfg.Resources.Models[wf.ManagerModelRef]; !ok {
				errs = append(errs, fmt.Sprintf("workflow: manager_model_ref %q does not resolve to a declared model", wf.ManagerModelRef))
			}
		}
	}

	return errs
}
