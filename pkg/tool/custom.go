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

package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/fluxo/pkg/config"
)

// CustomAdapter dispatches to handlers registered directly against a
// CustomAdapter instance, keyed by def.Source. Unlike LocalAdapter's
// package-level, schema-reflecting registry, a custom handler is wired
// by the embedding application at runtime construction time and carries
// no compile-time argument type.
type CustomAdapter struct {
	mu       sync.RWMutex
	handlers map[string]LocalFunc
}

// NewCustomAdapter creates an empty CustomAdapter.
func NewCustomAdapter() *CustomAdapter {
	return &CustomAdapter{handlers: make(map[string]LocalFunc)}
}

// Register installs handler under source, for later lookup by a
// ToolDefinition whose Source matches.
func (a *CustomAdapter) Register(source string, handler LocalFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[source] = handler
}

// Transport returns config.TransportCustom.
func (a *CustomAdapter) Transport() config.ToolTransport { return config.TransportCustom }

// Validate requires def.Source to be set and, since custom handlers
// are wired by the embedding application before Registry.RegisterTool
// runs, requires a handler to already be registered under it.
func (a *CustomAdapter) Validate(def config.ToolDefinition) []string {
	if def.Source == "" {
		return []string{"source is required for custom tools"}
	}
	a.mu.RLock()
	_, ok := a.handlers[def.Source]
	a.mu.RUnlock()
	if !ok {
		return []string{fmt.Sprintf("no custom handler registered for source %q", def.Source)}
	}
	return nil
}

// Execute dispatches call to the handler registered under def.Source.
func (a *CustomAdapter) Execute(ctx context.Context, def config.ToolDefinition, call Call) (any, error) {
	a.mu.RLock()
	handler, ok := a.handlers[def.Source]
	a.mu.RUnlock()
	if !ok {
		return nil, &Error{Kind: ErrorNotFound, Err: fmt.Errorf("no custom handler registered for source %q", def.Source)}
	}
	return handler(ctx, call.Arguments)
}

// Close is a no-op: CustomAdapter holds no resources beyond its handler
// map.
func (a *CustomAdapter) Close() error { return nil }

var _ Adapter = (*CustomAdapter)(nil)
