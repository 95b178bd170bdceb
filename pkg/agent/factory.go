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

package agent

import (
	"fmt"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/events"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/rag"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

// Factory builds Instances from an AgentDefinition. It holds no
// per-run state of its own: every dependency it closes over (chat
// registry, tool registry, event bus, base context provider, named
// middleware) is shared read-only across the workflow build that
// invokes it.
type Factory struct {
	Models          map[string]config.ModelReference
	ChatRegistry    *provider.ChatRegistry
	ToolRegistry    *tool.Registry
	Bus             *events.Bus
	ContextProvider *rag.ContextProvider // nil when RAG is disabled
	NamedMiddleware map[string]Middleware
}

// Build composes a single Instance following the Agent Factory's
// deterministic order: resolve the model, resolve each declared tool
// into a callable, build the sanitiser → event-emitter → user-declared
// middleware chain, attach a collection-scoped context provider if the
// agent declares knowledge_config, then assemble the instance. When
// inputTemplate is non-empty the chain is wrapped with a template
// middleware substituting {{user_input}}/{{previous_output}}.
func (f *Factory) Build(def config.AgentDefinition, inputTemplate string) (*Instance, error) {
	ref, ok := f.Models[def.ModelRef]
	if !ok {
		return nil, fmt.Errorf("agent %q: model reference %q not found in resources", def.ID, def.ModelRef)
	}
	chatClient, err := f.ChatRegistry.Resolve(def.ModelRef, ref)
	if err != nil {
		return nil, fmt.Errorf("agent %q: resolve model %q: %w", def.ID, def.ModelRef, err)
	}

	specs := make([]provider.ToolSpec, 0, len(def.ToolIDs))
	callables := make(map[string]tool.Callable, len(def.ToolIDs))
	for _, toolID := range def.ToolIDs {
		toolDef, ok := f.ToolRegistry.Get(toolID)
		if !ok {
			return nil, fmt.Errorf("agent %q: tool %q not found in registry", def.ID, toolID)
		}
		specs = append(specs, provider.ToolSpec{
			Name:        toolDef.Name,
			Description: toolDef.Description,
			Parameters:  toolDef.ParameterSchema,
		})
		callables[toolDef.Name] = tool.InstrumentedCallable(f.ToolRegistry, f.Bus, toolDef.Name)
	}

	chain := []Middleware{sanitiserMiddleware, eventEmitterMiddleware}
	for _, id := range def.MiddlewareIDs {
		mw, ok := f.NamedMiddleware[id]
		if !ok {
			return nil, fmt.Errorf("agent %q: middleware %q not found", def.ID, id)
		}
		chain = append(chain, mw)
	}
	if inputTemplate != "" {
		chain = append(chain, templateMiddleware(inputTemplate))
	}

	var contextProvider *rag.ContextProvider
	if def.KnowledgeConfig != nil && f.ContextProvider != nil {
		base := *f.ContextProvider
		if def.KnowledgeConfig.TopK > 0 {
			base.TopK = def.KnowledgeConfig.TopK
		}
		if def.KnowledgeConfig.MinScore > 0 {
			base.MinScore = def.KnowledgeConfig.MinScore
		}
		contextProvider = rag.ForCollections(base, def.KnowledgeConfig.Collections)
	}

	return &Instance{
		ID:              def.ID,
		Name:            def.ID,
		Description:     "Participant ID: " + def.ID + ". Role/Description: " + def.Role,
		Instructions:    def.Instructions,
		ChatClient:      chatClient,
		Tools:           specs,
		Callables:       callables,
		Middleware:      Chain(chain...),
		ContextProvider: contextProvider,
	}, nil
}
