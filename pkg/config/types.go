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

// Package config loads, validates, and normalises the declarative
// workflow configuration (models, tools, agents, the workflow graph, and
// RAG settings) into the typed entities every other package builds from.
package config

// ProviderKind identifies how a ModelReference reaches its vendor.
type ProviderKind string

const (
	ProviderVendorHosted  ProviderKind = "vendor-hosted"
	ProviderVendorNative  ProviderKind = "vendor-native"
	ProviderLocalEndpoint ProviderKind = "local-endpoint"
)

// ModelReference maps a named identifier to a concrete chat/embedding
// backend. Immutable after load; owned by the Config that declared it.
type ModelReference struct {
	ID             string       `yaml:"-" json:"-"`
	ProviderKind   ProviderKind `yaml:"provider_kind" json:"provider_kind" jsonschema:"enum=vendor-hosted,enum=vendor-native,enum=local-endpoint"`
	DeploymentName string       `yaml:"deployment_name" json:"deployment_name"`
	EnvBinding     string       `yaml:"env_binding,omitempty" json:"env_binding,omitempty"`
	// RetryPolicy governs chat/embedding call retries, same shape and
	// defaults as ToolDefinition.RetryPolicy.
	RetryPolicy RetryPolicy `yaml:"retry_policy,omitempty" json:"retry_policy,omitempty"`
}

// ToolTransport identifies how a ToolDefinition is actually invoked.
type ToolTransport string

const (
	TransportLocal  ToolTransport = "local"
	TransportHTTP   ToolTransport = "http"
	TransportHosted ToolTransport = "hosted"
	TransportMCP    ToolTransport = "mcp"
	TransportCustom ToolTransport = "custom"
)

// ApprovalMode governs whether a tool call requires human sign-off.
type ApprovalMode string

const (
	ApprovalNever       ApprovalMode = "never"
	ApprovalAlways      ApprovalMode = "always"
	ApprovalOnFirst     ApprovalMode = "on-first"
	ApprovalConditional ApprovalMode = "conditional"
)

// ParameterType is the JSON-Schema-equivalent type model used by
// ToolDefinition.ParameterSchema.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamObject  ParameterType = "object"
	ParamArray   ParameterType = "array"
)

// ParameterSchema describes one parameter (or, at the root, the whole
// argument object) accepted by a tool.
type ParameterSchema struct {
	Type        ParameterType              `yaml:"type" json:"type"`
	Description string                     `yaml:"description,omitempty" json:"description,omitempty"`
	Enum        []string                   `yaml:"enum,omitempty" json:"enum,omitempty"`
	Default     any                        `yaml:"default,omitempty" json:"default,omitempty"`
	Required    []string                   `yaml:"required,omitempty" json:"required,omitempty"`
	Properties  map[string]ParameterSchema `yaml:"properties,omitempty" json:"properties,omitempty"`
	Items       *ParameterSchema           `yaml:"items,omitempty" json:"items,omitempty"`
}

// RetryPolicy governs retry behaviour shared by tool and provider calls.
type RetryPolicy struct {
	MaxAttempts       int      `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	InitialDelayMS    int      `yaml:"initial_delay_ms,omitempty" json:"initial_delay_ms,omitempty"`
	MaxDelayMS        int      `yaml:"max_delay_ms,omitempty" json:"max_delay_ms,omitempty"`
	ExponentialBase   float64  `yaml:"exponential_base,omitempty" json:"exponential_base,omitempty"`
	RetryableErrors   []string `yaml:"retryable_error_kinds,omitempty" json:"retryable_error_kinds,omitempty"`
}

// SetDefaults fills a zero-value RetryPolicy with the defaults used
// throughout the runtime: 3 attempts, 500ms initial delay, 30s cap,
// doubling backoff, retrying only transient failure kinds.
func (p *RetryPolicy) SetDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelayMS == 0 {
		p.InitialDelayMS = 500
	}
	if p.MaxDelayMS == 0 {
		p.MaxDelayMS = 30000
	}
	if p.ExponentialBase == 0 {
		p.ExponentialBase = 2
	}
	if len(p.RetryableErrors) == 0 {
		p.RetryableErrors = []string{"rate_limited", "timeout", "connection", "transient_status"}
	}
}

// ToolDefinition describes a callable tool and how to reach it.
type ToolDefinition struct {
	Name            string          `yaml:"name" json:"name"`
	Description     string          `yaml:"description" json:"description"`
	Transport       ToolTransport   `yaml:"transport" json:"transport" jsonschema:"enum=local,enum=http,enum=hosted,enum=mcp,enum=custom"`
	Source          string          `yaml:"source" json:"source"`
	ParameterSchema ParameterSchema `yaml:"parameter_schema,omitempty" json:"parameter_schema,omitempty"`
	Timeout         int             `yaml:"timeout,omitempty" json:"timeout,omitempty"` // seconds
	RetryPolicy     RetryPolicy     `yaml:"retry_policy,omitempty" json:"retry_policy,omitempty"`
	ApprovalMode    ApprovalMode    `yaml:"approval_mode,omitempty" json:"approval_mode,omitempty"`
	MaxInvocations  *int            `yaml:"max_invocations,omitempty" json:"max_invocations,omitempty"`
	Enabled         *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// HTTP-specific fields, populated when Transport == TransportHTTP.
	Method     string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	VerifySSL  *bool             `yaml:"verify_ssl,omitempty" json:"verify_ssl,omitempty"`
	Auth       string            `yaml:"auth,omitempty" json:"auth,omitempty"` // bearer | basic | api-key
	ResponsePath string          `yaml:"response_path,omitempty" json:"response_path,omitempty"`

	// MCP-specific fields, populated when Transport == TransportMCP.
	MCPTransport string   `yaml:"mcp_transport,omitempty" json:"mcp_transport,omitempty"` // stdio | http | websocket | sse
	MCPCommand   string   `yaml:"mcp_command,omitempty" json:"mcp_command,omitempty"`
	MCPArgs      []string `yaml:"mcp_args,omitempty" json:"mcp_args,omitempty"`
}

// IsEnabled reports whether the tool is active; absent defaults to true.
func (t ToolDefinition) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// ConfirmationMode governs how an agent surfaces tool-approval prompts.
type ConfirmationMode string

const (
	ConfirmationCLI        ConfirmationMode = "cli"
	ConfirmationStructured ConfirmationMode = "structured"
	ConfirmationAuto       ConfirmationMode = "auto"
)

// KnowledgeConfig declares which knowledge collections an agent may
// retrieve context from, and with what retrieval parameters.
type KnowledgeConfig struct {
	Collections []string `yaml:"collections" json:"collections"`
	TopK        int      `yaml:"top_k,omitempty" json:"top_k,omitempty"`
	MinScore    float64  `yaml:"min_score,omitempty" json:"min_score,omitempty"`
}

// AgentDefinition describes a single participant in a workflow.
type AgentDefinition struct {
	ID               string           `yaml:"id" json:"id"`
	Role             string           `yaml:"role,omitempty" json:"role,omitempty"`
	ModelRef         string           `yaml:"model_ref" json:"model_ref"`
	Instructions     string           `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	ToolIDs          []string         `yaml:"tool_ids,omitempty" json:"tool_ids,omitempty"`
	MiddlewareIDs    []string         `yaml:"middleware_ids,omitempty" json:"middleware_ids,omitempty"`
	KnowledgeConfig  *KnowledgeConfig `yaml:"knowledge_config,omitempty" json:"knowledge_config,omitempty"`
	ConfirmationMode ConfirmationMode `yaml:"confirmation_mode,omitempty" json:"confirmation_mode,omitempty"`
}

// StepKind identifies the nature of a WorkflowStep.
type StepKind string

const (
	StepKindAgent StepKind = "agent"
	StepKindHuman StepKind = "human"
)

// WorkflowStep is one node declared in the workflow's step list.
type WorkflowStep struct {
	ID            string   `yaml:"id" json:"id"`
	Kind          StepKind `yaml:"kind" json:"kind"`
	AgentID       string   `yaml:"agent_id,omitempty" json:"agent_id,omitempty"`
	InputTemplate string   `yaml:"input_template,omitempty" json:"input_template,omitempty"`
	NextID        string   `yaml:"next_id,omitempty" json:"next_id,omitempty"`
	Transitions   []string `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// WorkflowKind selects which strategy builds the executor graph.
type WorkflowKind string

const (
	WorkflowSequential WorkflowKind = "sequential"
	WorkflowParallel   WorkflowKind = "parallel"
	WorkflowGroupChat  WorkflowKind = "group_chat"
	WorkflowHandoff    WorkflowKind = "handoff"
	WorkflowRouter     WorkflowKind = "router"
	WorkflowMagentic   WorkflowKind = "magentic"
)

// WorkflowDefinition is the full declarative description of a workflow
// graph, interpreted by the strategy selected for Kind.
type WorkflowDefinition struct {
	Kind                WorkflowKind   `yaml:"kind" json:"kind"`
	Steps               []WorkflowStep `yaml:"steps" json:"steps"`
	StartID             string         `yaml:"start_id,omitempty" json:"start_id,omitempty"`
	ManagerModelRef     string         `yaml:"manager_model_ref,omitempty" json:"manager_model_ref,omitempty"`
	ManagerInstructions string         `yaml:"manager_instructions,omitempty" json:"manager_instructions,omitempty"`
	MaxRounds           int            `yaml:"max_rounds,omitempty" json:"max_rounds,omitempty"`
	MaxStall            int            `yaml:"max_stall,omitempty" json:"max_stall,omitempty"`
	TerminationCondition string        `yaml:"termination_condition,omitempty" json:"termination_condition,omitempty"`
	EnablePlanReview    bool           `yaml:"enable_plan_review,omitempty" json:"enable_plan_review,omitempty"`
}

// RAGEmbeddingConfig configures the embedding side of the RAG pipeline.
type RAGEmbeddingConfig struct {
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Normalize  bool   `yaml:"normalize,omitempty" json:"normalize,omitempty"`
}

// RAGConfig configures the optional retrieval-augmented-generation layer.
type RAGConfig struct {
	Enabled       bool               `yaml:"enabled" json:"enabled"`
	Provider      string             `yaml:"provider,omitempty" json:"provider,omitempty"`
	Embedding     RAGEmbeddingConfig `yaml:"embedding,omitempty" json:"embedding,omitempty"`
	TopK          int                `yaml:"top_k,omitempty" json:"top_k,omitempty"`
	MinScore      float64            `yaml:"min_score,omitempty" json:"min_score,omitempty"`
	Strategy      string             `yaml:"strategy,omitempty" json:"strategy,omitempty"` // last_message | conversation
	ContextPrompt string             `yaml:"context_prompt,omitempty" json:"context_prompt,omitempty"`
	Namespace     string             `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// Resources groups the declaratively-configured models and tools.
type Resources struct {
	Models map[string]ModelReference `yaml:"models,omitempty" json:"models,omitempty"`
	Tools  []ToolDefinition          `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Config is the root of the declarative workflow document: version,
// name, resources, agents, the workflow graph, and an optional RAG layer.
type Config struct {
	Version   string              `yaml:"version" json:"version"`
	Name      string              `yaml:"name" json:"name"`
	Resources Resources           `yaml:"resources,omitempty" json:"resources,omitempty"`
	Agents    []AgentDefinition   `yaml:"agents" json:"agents"`
	Workflow  WorkflowDefinition  `yaml:"workflow" json:"workflow"`
	RAG       *RAGConfig          `yaml:"rag,omitempty" json:"rag,omitempty"`
}
