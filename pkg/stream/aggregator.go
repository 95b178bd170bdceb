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

// Package stream coalesces the low-level events a workflow run
// publishes to the event bus into coherent per-executor messages for a
// UI consumer, at a configurable verbosity.
package stream

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kadirpekel/fluxo/pkg/events"
)

// Verbosity controls which Message kinds an Aggregator emits.
type Verbosity string

const (
	VerbosityMinimal Verbosity = "minimal"
	VerbosityNormal  Verbosity = "normal"
	VerbosityDebug   Verbosity = "debug"
)

// MessageType is the kind of a coalesced Message.
type MessageType string

const (
	MessageExecutorStart    MessageType = "executor_start"
	MessageExecutorUpdate   MessageType = "executor_update"
	MessageExecutorComplete MessageType = "executor_complete"
	MessageWorkflowOutput   MessageType = "workflow_output"
	MessageWorkflowStatus   MessageType = "workflow_status"
)

// Message is one UI-ready, coalesced unit of streaming output.
type Message struct {
	ExecutorID string
	Content    string
	Complete   bool
	Type       MessageType
	Metadata   map[string]any
}

// Aggregator holds a per-executor append buffer and emits Messages
// from bus events at its configured Verbosity. Safe for concurrent use
// by multiple independent workflow runs sharing one bus subscription,
// since every write is guarded by mu; Clear resets it for reuse.
type Aggregator struct {
	Verbosity Verbosity

	mu      sync.Mutex
	buffers map[string][]string
}

// NewAggregator returns an Aggregator at the given verbosity, defaulting
// to VerbosityNormal for an empty value.
func NewAggregator(verbosity Verbosity) *Aggregator {
	if verbosity == "" {
		verbosity = VerbosityNormal
	}
	return &Aggregator{Verbosity: verbosity, buffers: make(map[string][]string)}
}

// Attach subscribes the aggregator to every event on bus and calls emit
// for each Message it produces. Returns the subscription id, usable
// with bus.Unsubscribe.
func (a *Aggregator) Attach(bus *events.Bus, emit func(Message)) string {
	return bus.Subscribe(func(e events.Event) error {
		for _, m := range a.Handle(e) {
			emit(m)
		}
		return nil
	}, events.Wildcard)
}

// Handle maps one bus event to zero or more Messages, per the fixed
// inbound→outbound table: WORKFLOW_START becomes a "Workflow iniciado"
// status message, AGENT_START starts a fresh buffer and becomes
// executor_start, AGENT_RESPONSE flushes the buffer as executor_complete,
// WORKFLOW_COMPLETE becomes workflow_output, and WORKFLOW_ERROR/
// WORKFLOW_STEP become workflow_status.
func (a *Aggregator) Handle(e events.Event) []Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case events.TypeWorkflowStart:
		if !a.shouldEmit(MessageWorkflowStatus) {
			return nil
		}
		return []Message{{
			Content: "Workflow iniciado", Complete: true, Type: MessageWorkflowStatus,
			Metadata: map[string]any{"state": "started"},
		}}

	case events.TypeAgentStart:
		payload, _ := e.Payload.(events.AgentStartPayload)
		a.buffers[payload.AgentName] = nil
		if !a.shouldEmit(MessageExecutorStart) {
			return nil
		}
		return []Message{{
			ExecutorID: payload.AgentName,
			Content:    fmt.Sprintf("Executor %q started", payload.AgentName),
			Type:       MessageExecutorStart,
			Metadata:   map[string]any{"executor_id": payload.AgentName},
		}}

	case events.TypeAgentResponse:
		payload, _ := e.Payload.(events.AgentResponsePayload)
		content := payload.Output
		if buffered := strings.Join(a.buffers[payload.AgentName], ""); buffered != "" {
			content = buffered
		}
		chunkCount := len(a.buffers[payload.AgentName])
		delete(a.buffers, payload.AgentName)
		if !a.shouldEmit(MessageExecutorComplete) {
			return nil
		}
		return []Message{{
			ExecutorID: payload.AgentName, Content: content, Complete: true, Type: MessageExecutorComplete,
			Metadata: map[string]any{"executor_id": payload.AgentName, "chunk_count": chunkCount},
		}}

	case events.TypeWorkflowComplete:
		payload, _ := e.Payload.(events.WorkflowCompletePayload)
		if !a.shouldEmit(MessageWorkflowOutput) {
			return nil
		}
		return []Message{{Content: payload.Output, Complete: true, Type: MessageWorkflowOutput}}

	case events.TypeWorkflowError:
		payload, _ := e.Payload.(events.WorkflowErrorPayload)
		if !a.shouldEmit(MessageWorkflowStatus) {
			return nil
		}
		return []Message{{
			Content: "Workflow status: error", Complete: true, Type: MessageWorkflowStatus,
			Metadata: map[string]any{"state": "error", "error": payload.Error},
		}}

	case events.TypeWorkflowStep:
		payload, _ := e.Payload.(events.WorkflowStepPayload)
		if !a.shouldEmit(MessageWorkflowStatus) {
			return nil
		}
		return []Message{{
			Content: fmt.Sprintf("Workflow status: step %s", payload.StepID), Complete: true,
			Type: MessageWorkflowStatus, Metadata: map[string]any{"state": "step", "step_id": payload.StepID},
		}}
	}
	return nil
}

// Chunk appends a partial text chunk to executorID's buffer, for
// callers driving a token-by-token chat stream directly rather than
// through the event bus. Returns the executor_update Message to emit
// if the aggregator's verbosity calls for it, nil otherwise.
func (a *Aggregator) Chunk(executorID, text string) *Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffers[executorID] = append(a.buffers[executorID], text)
	if !a.shouldEmit(MessageExecutorUpdate) {
		return nil
	}
	return &Message{
		ExecutorID: executorID,
		Content:    strings.Join(a.buffers[executorID], ""),
		Type:       MessageExecutorUpdate,
		Metadata:   map[string]any{"chunk_count": len(a.buffers[executorID])},
	}
}

// Clear resets all buffered state so the aggregator can be reused for
// a fresh run.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffers = make(map[string][]string)
}

func (a *Aggregator) shouldEmit(t MessageType) bool {
	switch a.Verbosity {
	case VerbosityMinimal:
		return t == MessageWorkflowOutput
	case VerbosityDebug:
		return true
	default:
		return t == MessageExecutorStart || t == MessageExecutorComplete ||
			t == MessageWorkflowOutput || t == MessageWorkflowStatus
	}
}
