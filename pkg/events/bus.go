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

// Package events implements the synchronous publish/subscribe bus that
// every other component uses to observe workflow execution: step
// lifecycle transitions, agent responses, tool invocations and final
// results all flow through here rather than through direct calls between
// components. Incremental streaming output is not published on the bus
// (see StreamChunkPayload).
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Type identifies the kind of event carried on the bus.
type Type string

const (
	TypeWorkflowStart    Type = "WORKFLOW_START"
	TypeWorkflowStep     Type = "WORKFLOW_STEP"
	TypeWorkflowComplete Type = "WORKFLOW_COMPLETE"
	TypeWorkflowError    Type = "WORKFLOW_ERROR"
	TypeAgentStart       Type = "AGENT_START"
	TypeAgentResponse    Type = "AGENT_RESPONSE"
	TypeAgentRunStart    Type = "AGENT_RUN_START"
	TypeAgentRunComplete Type = "AGENT_RUN_COMPLETE"
	TypeToolCallStart    Type = "TOOL_CALL_START"
	TypeToolCallComplete Type = "TOOL_CALL_COMPLETE"
	TypeToolCallError    Type = "TOOL_CALL_ERROR"

	// Wildcard subscribes a handler to every event type.
	Wildcard Type = "*"
)

// Event is the envelope published on the bus. Payload carries the
// type-specific data (e.g. WorkflowStepPayload); handlers type-assert it.
type Event struct {
	Type      Type
	WorkflowID string
	StepID    string
	Payload   any
}

// Handler receives published events. A handler error is logged and does
// not stop delivery to the remaining handlers, nor does it abort Emit.
type Handler func(Event) error

// Bus is a synchronous, in-process event bus. Subscribe/Unsubscribe/Emit
// are all safe for concurrent use; Emit calls handlers synchronously, on
// the caller's goroutine. Handlers are stored in maps keyed by
// subscription ID, so the order in which Emit calls them is not defined
// and does not follow registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type]map[string]Handler
	enabled  bool
}

// New creates an enabled, empty Bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Type]map[string]Handler),
		enabled:  true,
	}
}

// Subscribe registers handler for one or more event types and returns a
// subscription ID usable with Unsubscribe.
func (b *Bus) Subscribe(handler Handler, types ...Type) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		if _, ok := b.handlers[t]; !ok {
			b.handlers[t] = make(map[string]Handler)
		}
		b.handlers[t][id] = handler
	}
	return id
}

// SubscribeAll registers handler for every event type via Wildcard.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(handler, Wildcard)
}

// Unsubscribe removes a subscription by ID, regardless of which types it
// was registered for. Returns false if the ID was not found.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := false
	for t, byID := range b.handlers {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			removed = true
			if len(byID) == 0 {
				delete(b.handlers, t)
			}
		}
	}
	return removed
}

// Enable turns event delivery on. Buses start enabled.
func (b *Bus) Enable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = true
}

// Disable turns event delivery off; Emit becomes a no-op until Enable.
func (b *Bus) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Type]map[string]Handler)
}

// HandlerCount returns the total number of active subscriptions across
// all event types, counting a wildcard subscription once.
func (b *Bus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, byID := range b.handlers {
		for id := range byID {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// Emit delivers event to every handler subscribed to its type plus every
// wildcard handler. A handler's error is logged and swallowed so that one
// failing observer never aborts the others or the caller's control flow.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	if !b.enabled {
		b.mu.RUnlock()
		return
	}

	var targets []Handler
	if byID, ok := b.handlers[event.Type]; ok {
		for _, h := range byID {
			targets = append(targets, h)
		}
	}
	if event.Type != Wildcard {
		if byID, ok := b.handlers[Wildcard]; ok {
			for _, h := range byID {
				targets = append(targets, h)
			}
		}
	}
	b.mu.RUnlock()

	for _, handler := range targets {
		if err := handler(event); err != nil {
			slog.Error("event handler failed", "event_type", event.Type, "workflow_id", event.WorkflowID, "error", err)
		}
	}
}

// EmitSimple publishes an event of the given type with no workflow/step
// correlation: WorkflowID and StepID are left empty.
func (b *Bus) EmitSimple(t Type, payload any) {
	b.Emit(Event{Type: t, Payload: payload})
}
