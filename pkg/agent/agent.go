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

// Package agent composes a chat client, resolved tools, a middleware
// chain, and an optional retrieval context provider into a single
// invocable Instance, per the deterministic build order a workflow
// graph relies on to place agents at each of its steps.
package agent

import (
	"context"
	"fmt"

	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/rag"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

// Middleware transforms an inbound message list before it reaches the
// chat client. Middleware is chained front-to-back: the first entry
// sees the rawest input, the last entry's output is what the model
// receives.
type Middleware func(ctx context.Context, messages []provider.ChatMessage) ([]provider.ChatMessage, error)

// Chain composes middleware in order, front-to-back.
func Chain(mw ...Middleware) Middleware {
	return func(ctx context.Context, messages []provider.ChatMessage) ([]provider.ChatMessage, error) {
		var err error
		for _, m := range mw {
			messages, err = m(ctx, messages)
			if err != nil {
				return nil, err
			}
		}
		return messages, nil
	}
}

// Instance is a fully composed, invocable participant in a workflow
// graph. It is built once per workflow run and discarded at run end —
// instances are never reused or cached across runs, since their tool
// callables and middleware may close over run-scoped state.
type Instance struct {
	ID              string
	Name            string
	Description     string
	Instructions    string
	ChatClient      provider.ChatClient
	Tools           []provider.ToolSpec
	Callables       map[string]tool.Callable
	Middleware      Middleware
	ContextProvider *rag.ContextProvider
}

// Invoke runs the instance against a message history: applies
// middleware and, if the instance has a context provider, prepends
// retrieved passages; resolves tool calls by re-invoking the chat
// client until the model stops requesting tools; and returns the final
// assistant response.
func (inst *Instance) Invoke(ctx context.Context, messages []provider.ChatMessage) (provider.ChatResponse, error) {
	resp, _, err := inst.invoke(ctx, messages, nil, nil)
	return resp, err
}

// InvokeRouted behaves like Invoke but additionally exposes extraTools
// to the model. If the model calls one of them, InvokeRouted stops the
// tool-resolution loop immediately and returns the response with that
// ToolCall still attached, instead of treating it as an unregistered
// tool error — letting a handoff or router strategy read which control
// tool the model picked. It also returns the conversation as sent, so
// the caller can continue it; the assistant message carrying the routed
// call is not appended to it.
func (inst *Instance) InvokeRouted(ctx context.Context, messages []provider.ChatMessage, extraTools []provider.ToolSpec) (provider.ChatResponse, []provider.ChatMessage, error) {
	control := make(map[string]bool, len(extraTools))
	for _, t := range extraTools {
		control[t.Name] = true
	}
	return inst.invoke(ctx, messages, extraTools, control)
}

func (inst *Instance) invoke(ctx context.Context, messages []provider.ChatMessage, extraTools []provider.ToolSpec, controlNames map[string]bool) (provider.ChatResponse, []provider.ChatMessage, error) {
	messages, err := inst.prepare(ctx, messages)
	if err != nil {
		return provider.ChatResponse{}, nil, fmt.Errorf("agent %q: prepare messages: %w", inst.ID, err)
	}

	tools := inst.Tools
	if len(extraTools) > 0 {
		tools = append(append([]provider.ToolSpec(nil), inst.Tools...), extraTools...)
	}

	for {
		resp, err := inst.ChatClient.Complete(ctx, messages, tools)
		if err != nil {
			return provider.ChatResponse{}, nil, fmt.Errorf("agent %q: chat completion: %w", inst.ID, err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp, messages, nil
		}
		for _, call := range resp.ToolCalls {
			if controlNames[call.Name] {
				return resp, messages, nil
			}
		}

		messages = append(messages, provider.ChatMessage{Role: provider.RoleAssistant, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			callable, ok := inst.Callables[call.Name]
			if !ok {
				messages = append(messages, provider.ChatMessage{
					Role: provider.RoleTool, ToolName: call.Name, ToolCallID: call.ID,
					Content: fmt.Sprintf("tool %q is not registered for this agent", call.Name),
				})
				continue
			}
			result, err := callable(ctx, call.Arguments)
			content := fmt.Sprint(result)
			if err != nil {
				content = err.Error()
			}
			messages = append(messages, provider.ChatMessage{
				Role: provider.RoleTool, ToolName: call.Name, ToolCallID: call.ID, Content: content,
			})
		}
	}
}

func (inst *Instance) prepare(ctx context.Context, messages []provider.ChatMessage) ([]provider.ChatMessage, error) {
	if inst.Middleware != nil {
		var err error
		messages, err = inst.Middleware(ctx, messages)
		if err != nil {
			return nil, err
		}
	}
	if inst.ContextProvider == nil {
		return messages, nil
	}
	retrieved, err := inst.ContextProvider.Invoking(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("context provider: %w", err)
	}
	if len(retrieved.Messages) == 0 {
		return messages, nil
	}
	out := make([]provider.ChatMessage, 0, len(retrieved.Messages)+len(messages))
	out = append(out, retrieved.Messages...)
	out = append(out, messages...)
	return out, nil
}
