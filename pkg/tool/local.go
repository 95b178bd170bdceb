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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/fluxo/pkg/config"
)

// LocalFunc is the shape every function registered with RegisterLocal
// must have: it receives decoded arguments and returns a result map.
type LocalFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

var (
	localMu    sync.RWMutex
	localFuncs = map[string]LocalFunc{}
)

// RegisterLocal makes fn callable from configuration under the dotted
// source path name (conventionally "package.Function"). Intended to be
// called from init() in whichever package defines the tool, mirroring
// how the workflow graph references it by source string.
func RegisterLocal(name string, fn LocalFunc) {
	localMu.Lock()
	defer localMu.Unlock()
	localFuncs[name] = fn
}

// RegisterTyped wraps a typed function into a LocalFunc, generating its
// JSON-Schema-equivalent parameter schema by reflecting Args' struct
// tags, and registers it under name. Returns the generated schema so
// callers can attach it to a ToolDefinition.
func RegisterTyped[Args any](name string, fn func(context.Context, Args) (map[string]any, error)) (config.ParameterSchema, error) {
	schema, err := reflectSchema[Args]()
	if err != nil {
		return config.ParameterSchema{}, fmt.Errorf("reflect schema for %s: %w", name, err)
	}

	RegisterLocal(name, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		var typed Args
		if err := decodeArgs(args, &typed); err != nil {
			return nil, &Error{Kind: ErrorInvalidArgs, Err: err}
		}
		return fn(ctx, typed)
	})

	return schema, nil
}

func decodeArgs(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return nil
}

func reflectSchema[T any]() (config.ParameterSchema, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	raw := reflector.Reflect(new(T))

	data, err := json.Marshal(raw)
	if err != nil {
		return config.ParameterSchema{}, err
	}
	var decoded struct {
		Type       config.ParameterType                  `json:"type"`
		Properties map[string]config.ParameterSchema     `json:"properties"`
		Required   []string                               `json:"required"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return config.ParameterSchema{}, err
	}
	if decoded.Type == "" {
		decoded.Type = config.ParamObject
	}
	return config.ParameterSchema{
		Type:       decoded.Type,
		Properties: decoded.Properties,
		Required:   decoded.Required,
	}, nil
}

// LocalAdapter dispatches calls to functions registered with
// RegisterLocal, resolved by each tool's Source field.
type LocalAdapter struct{}

// NewLocalAdapter creates a LocalAdapter. There is no per-instance
// state: functions live in the package-level registry so they can be
// registered from init() before any Registry is constructed.
func NewLocalAdapter() *LocalAdapter { return &LocalAdapter{} }

// Transport returns config.TransportLocal.
func (a *LocalAdapter) Transport() config.ToolTransport { return config.TransportLocal }

// Validate requires def.Source to be a non-empty dotted path. It does
// not require the path to already be registered: local functions are
// conventionally wired from init(), which may run after config
// loading in test or library-embedding contexts.
func (a *LocalAdapter) Validate(def config.ToolDefinition) []string {
	if def.Source == "" {
		return []string{"source is required for local tools"}
	}
	return nil
}

// Execute looks up def.Source in the local function registry and
// invokes it with call.Arguments.
func (a *LocalAdapter) Execute(ctx context.Context, def config.ToolDefinition, call Call) (any, error) {
	localMu.RLock()
	fn, ok := localFuncs[def.Source]
	localMu.RUnlock()
	if !ok {
		return nil, &Error{Kind: ErrorNotFound, Err: fmt.Errorf("no local function registered for source %q", def.Source)}
	}
	result, err := fn(ctx, call.Arguments)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close is a no-op: LocalAdapter holds no per-instance resources.
func (a *LocalAdapter) Close() error { return nil }

var _ Adapter = (*LocalAdapter)(nil)
