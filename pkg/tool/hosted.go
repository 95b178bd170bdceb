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

	"github.com/kadirpekel/fluxo/pkg/config"
)

// HostedAdapter accounts for vendor-hosted tools: ones the chat
// provider itself executes server-side (e.g. built-in web search or
// code execution) rather than the runtime. The provider's response
// already carries the tool's result alongside its call, so Execute's
// only job is to surface that pre-computed value instead of performing
// a second, redundant invocation.
type HostedAdapter struct{}

// NewHostedAdapter creates a HostedAdapter.
func NewHostedAdapter() *HostedAdapter { return &HostedAdapter{} }

// Transport returns config.TransportHosted.
func (a *HostedAdapter) Transport() config.ToolTransport { return config.TransportHosted }

// Validate reports no violations: a hosted tool declares no source or
// transport-specific fields of its own, only name/description/schema
// for the chat provider's own tool-calling surface.
func (a *HostedAdapter) Validate(def config.ToolDefinition) []string { return nil }

// Execute returns the "result" argument the chat client attached when
// it surfaced the hosted tool call, erroring if the provider did not
// supply one.
func (a *HostedAdapter) Execute(ctx context.Context, def config.ToolDefinition, call Call) (any, error) {
	result, ok := call.Arguments["result"]
	if !ok {
		return nil, &Error{Kind: ErrorPermanent, Err: fmt.Errorf("hosted tool %q produced no provider-side result", def.Name)}
	}
	return result, nil
}

// Close is a no-op: HostedAdapter holds no resources.
func (a *HostedAdapter) Close() error { return nil }

var _ Adapter = (*HostedAdapter)(nil)
