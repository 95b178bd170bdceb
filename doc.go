// Package fluxo provides the core orchestration engine for declarative
// multi-agent workflows.
//
// Fluxo loads a workflow definition from YAML or JSON, resolves its
// agents, tools, and models from a layered configuration store, and
// drives execution through one of several orchestration strategies:
// sequential, parallel, group chat, handoff, router, or magentic.
//
// # Quick Start
//
// Define agents, tools, and a workflow in a configuration document:
//
//	yaml
//	resources:
//	  models:
//	    planner:
//	      provider_kind: vendor-native
//	      deployment_name: claude-3-5-sonnet-20241022
//	      env_binding: ANTHROPIC_API_KEY
//	agents:
//	  - id: planner
//	    role: "Plans the next step"
//	    model_ref: planner
//	workflow:
//	  kind: sequential
//	  steps:
//	    - id: plan
//	      kind: agent
//	      agent_id: planner
//
// # Using as a Go Library
//
// Import the engine and its supporting registries:
//
//	import (
//	    "github.com/kadirpekel/fluxo/pkg/config"
//	    "github.com/kadirpekel/fluxo/pkg/engine"
//	    "github.com/kadirpekel/fluxo/pkg/provider"
//	    "github.com/kadirpekel/fluxo/pkg/tool"
//	)
//
// # Key Features
//
//   - Declarative workflows: sequential, parallel, group-chat, handoff,
//     router, and magentic orchestration strategies
//   - Vendor-agnostic chat and embedding providers (Anthropic, OpenAI,
//     Ollama, Cohere)
//   - Pluggable tool transports: local functions, HTTP, hosted
//     (vendor-executed), MCP (stdio and HTTP), and custom handlers
//   - YAML/JSON configuration loaded once from a file, with env-var
//     expansion; config source providers for file, Consul, etcd, and
//     ZooKeeper report changes through Watch, and nothing in the
//     runtime reloads a running configuration from them
//   - An event bus covering every workflow, agent, and tool lifecycle
//     transition
//
// # License
//
// Apache-2.0 - see LICENSE for details.
package fluxo
