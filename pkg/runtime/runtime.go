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

// Package runtime is the composition root: it turns a validated
// Config into one Runtime value owning every shared registry, the
// agent factory, and the workflow engine, built once and passed down
// rather than reached for as package-level state.
package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/fluxo/pkg/agent"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/engine"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/fluxoerr"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/rag"
	"github.com/kadirpekel/fluxo/pkg/runner"
	"github.com/kadirpekel/fluxo/pkg/strategy"
	"github.com/kadirpekel/fluxo/pkg/stream"
	"github.com/kadirpekel/fluxo/pkg/tool"
	"github.com/kadirpekel/fluxo/pkg/vectorstore"
)

// Runtime is the fully wired set of collaborators one loaded Config
// produces. Every field is a shared, read-only dependency of the
// engine's build step — none of it is per-run state.
type Runtime struct {
	Config            *config.Config
	Bus               *events.Bus
	ChatRegistry      *provider.ChatRegistry
	EmbeddingRegistry *provider.EmbeddingRegistry
	Tools             *tool.Registry
	Agents            *agent.Factory
	Engine            *engine.Engine
	Runner            *runner.Runner
	VectorStore       vectorstore.Store // nil when rag.enabled is false

	knowledgeSignature rag.Signature
}

// Options configures the parts of a Runtime that a declarative Config
// cannot express on its own.
type Options struct {
	// KnowledgeRootDir is the catalogue directory RebuildFromCatalogue
	// reads at startup (state.json + chunks/<id>.json). Empty disables
	// the rebuild even when rag.enabled is true, leaving a fresh, empty
	// store for collections populated by some other ingestion path.
	KnowledgeRootDir string
	// MaxIterations overrides the engine's default per-run iteration
	// budget. Zero uses the engine's own default.
	MaxIterations int
	// StreamVerbosity is not read by New or Stream; Stream takes its
	// verbosity as an argument.
	StreamVerbosity stream.Verbosity
}

// New validates cfg and wires every collaborator it describes: the
// tool registry (one adapter per transport, then every declared
// ToolDefinition), the chat/embedding registries, an optional RAG
// context provider and vector store, the agent factory, and the
// workflow engine.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fluxoerr.Newf(fluxoerr.ConfigInvalid, "invalid configuration: %s", strings.Join(errs, "; "))
	}

	bus := events.New()

	toolRegistry := tool.NewRegistry()
	toolRegistry.RegisterAdapter(tool.NewLocalAdapter())
	toolRegistry.RegisterAdapter(tool.NewHTTPAdapter())
	toolRegistry.RegisterAdapter(tool.NewMCPAdapter())
	toolRegistry.RegisterAdapter(tool.NewCustomAdapter())
	toolRegistry.RegisterAdapter(tool.NewHostedAdapter())
	for _, toolDef := range cfg.Resources.Tools {
		if err := toolRegistry.RegisterTool(toolDef); err != nil {
			return nil, fluxoerr.New(fluxoerr.ConfigInvalid, err)
		}
	}

	chatRegistry := provider.NewChatRegistry()
	embeddingRegistry := provider.NewEmbeddingRegistry()

	rt := &Runtime{
		Config: cfg, Bus: bus, ChatRegistry: chatRegistry,
		EmbeddingRegistry: embeddingRegistry, Tools: toolRegistry,
	}

	var contextProvider *rag.ContextProvider
	if cfg.RAG != nil && cfg.RAG.Enabled {
		cp, store, err := rt.buildKnowledgeBase(ctx, *cfg.RAG, opts.KnowledgeRootDir)
		if err != nil {
			return nil, err
		}
		contextProvider = cp
		rt.VectorStore = store
	}

	namedMiddleware := make(map[string]agent.Middleware)
	rt.Agents = &agent.Factory{
		Models:          cfg.Resources.Models,
		ChatRegistry:    chatRegistry,
		ToolRegistry:    toolRegistry,
		Bus:             bus,
		ContextProvider: contextProvider,
		NamedMiddleware: namedMiddleware,
	}

	rt.Engine = &engine.Engine{
		Agents: rt.Agents, Strategies: strategy.NewRegistry(), Bus: bus, MaxIterations: opts.MaxIterations,
	}
	rt.Runner = runner.New(rt.Engine)

	return rt, nil
}

// buildKnowledgeBase resolves the embedding model named by ragCfg.Provider
// (a key into cfg.Resources.Models, the same convention every other
// *_ref field in the config uses), constructs an in-process vector
// store, and rebuilds it from the on-disk catalogue at rootDir if one
// was given.
func (rt *Runtime) buildKnowledgeBase(ctx context.Context, ragCfg config.RAGConfig, rootDir string) (*rag.ContextProvider, vectorstore.Store, error) {
	embeddingRef, ok := rt.Config.Resources.Models[ragCfg.Provider]
	if !ok {
		return nil, nil, fluxoerr.Newf(fluxoerr.ReferenceUnresolved, "rag.provider %q not found in resources.models", ragCfg.Provider)
	}
	embeddings, err := rt.EmbeddingRegistry.Resolve(ragCfg.Provider, embeddingRef)
	if err != nil {
		return nil, nil, fluxoerr.New(fluxoerr.ProviderMisconfigured, fmt.Errorf("resolve embedding provider %q: %w", ragCfg.Provider, err))
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{Kind: vectorstore.KindMemory})
	if err != nil {
		return nil, nil, fluxoerr.New(fluxoerr.ConfigInvalid, fmt.Errorf("construct vector store: %w", err))
	}

	if rootDir != "" {
		_, signature, err := rag.RebuildFromCatalogue(ctx, rootDir, store, embeddings, ragCfg)
		if err != nil {
			return nil, nil, fluxoerr.New(fluxoerr.EmbeddingSignatureMismatch, fmt.Errorf("rebuild knowledge base from %q: %w", rootDir, err))
		}
		rt.knowledgeSignature = signature
	}

	strategyKind := rag.StrategyLastMessage
	if ragCfg.Strategy == string(rag.StrategyConversation) {
		strategyKind = rag.StrategyConversation
	}

	return &rag.ContextProvider{
		Store: store, Embeddings: embeddings, TopK: ragCfg.TopK, MinScore: ragCfg.MinScore,
		Strategy: strategyKind, ContextPrompt: ragCfg.ContextPrompt, Namespace: ragCfg.Namespace,
	}, store, nil
}

// RunWorkflow builds and runs the Config's declared workflow over
// every declared agent.
func (rt *Runtime) RunWorkflow(ctx context.Context, input string) (string, []strategy.StepOutput, error) {
	agentDefs := make(map[string]config.AgentDefinition, len(rt.Config.Agents))
	for _, def := range rt.Config.Agents {
		agentDefs[def.ID] = def
	}
	wf, err := rt.Engine.Build(rt.Config.Name, rt.Config.Name, rt.Config.Workflow, agentDefs)
	if err != nil {
		return "", nil, err
	}
	return wf.Run(ctx, input)
}

// RunAgent runs one declared agent standalone via the Runner, bypassing
// the Config's own workflow entirely.
func (rt *Runtime) RunAgent(ctx context.Context, agentID, input string) (string, error) {
	for _, def := range rt.Config.Agents {
		if def.ID == agentID {
			return rt.Runner.Run(ctx, agentID, def, input)
		}
	}
	return "", fluxoerr.Newf(fluxoerr.ReferenceUnresolved, "agent %q not declared in config", agentID)
}

// Stream returns a new Aggregator at verbosity. It is not attached to
// the runtime's bus; the caller attaches it with Attach(rt.Bus, emit).
func (rt *Runtime) Stream(verbosity stream.Verbosity) *stream.Aggregator {
	return stream.NewAggregator(verbosity)
}

// Close releases every collaborator that owns an external resource
// (currently just the vector store and the tool registry's MCP
// connections).
func (rt *Runtime) Close() error {
	var err error
	if rt.VectorStore != nil {
		err = rt.VectorStore.Close()
	}
	if cerr := rt.Tools.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
