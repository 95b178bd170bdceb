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

package events

// WorkflowStartPayload is carried by TypeWorkflowStart events.
type WorkflowStartPayload struct {
	WorkflowName string `json:"workflow_name"`
	Input        string `json:"input"`
}

// WorkflowStepPayload is carried by TypeWorkflowStep events, one per
// step transition.
type WorkflowStepPayload struct {
	StepID  string `json:"step_id"`
	AgentID string `json:"agent_id,omitempty"`
}

// WorkflowCompletePayload is carried by TypeWorkflowComplete events.
type WorkflowCompletePayload struct {
	WorkflowName string `json:"workflow_name"`
	Output       string `json:"output"`
	DurationMS   int64  `json:"duration_ms"`
}

// WorkflowErrorPayload is carried by TypeWorkflowError events. AgentName
// is set when the failure is attributable to a specific participant.
type WorkflowErrorPayload struct {
	AgentName string `json:"agent_name,omitempty"`
	Error     string `json:"error"`
}

// AgentStartPayload is carried by TypeAgentStart events.
type AgentStartPayload struct {
	AgentName string `json:"agent_name"`
	Input     string `json:"input"`
}

// AgentResponsePayload is carried by TypeAgentResponse events.
type AgentResponsePayload struct {
	AgentName string `json:"agent_name"`
	Output    string `json:"output"`
}

// AgentRunStartPayload is carried by TypeAgentRunStart events, emitted
// once per standalone agent run (and symmetrically closed by
// TypeAgentRunComplete).
type AgentRunStartPayload struct {
	AgentName  string `json:"agent_name"`
	AgentRole  string `json:"agent_role,omitempty"`
	ToolsCount int    `json:"tools_count"`
	Input      string `json:"input"`
}

// AgentRunCompletePayload is carried by TypeAgentRunComplete events.
type AgentRunCompletePayload struct {
	AgentName  string `json:"agent_name"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

// ToolCallStartPayload is carried by TypeToolCallStart events.
type ToolCallStartPayload struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallCompletePayload is carried by TypeToolCallComplete events.
type ToolCallCompletePayload struct {
	Tool       string `json:"tool"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
	Attempts   int    `json:"attempts"`
}

// ToolCallErrorPayload is carried by TypeToolCallError events.
type ToolCallErrorPayload struct {
	Tool     string `json:"tool"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// StreamChunkPayload carries incremental output text for a running step,
// aggregated by the streaming layer rather than published on the bus
// under one of the eleven fixed event types.
type StreamChunkPayload struct {
	StepName string `json:"step_name"`
	Text     string `json:"text"`
	Done     bool   `json:"done"`
}
