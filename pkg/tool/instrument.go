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

	"github.com/kadirpekel/fluxo/pkg/events"
)

// Callable is the shape an agent's tool-calling middleware invokes:
// arguments in, a result value or error out.
type Callable func(ctx context.Context, arguments map[string]any) (any, error)

// InstrumentedCallable wraps registry.Invoke for toolName with event-bus
// emission, interposed once here rather than duplicated in every
// adapter: TOOL_CALL_START before invocation, TOOL_CALL_COMPLETE on
// success, TOOL_CALL_ERROR on failure (including retries exhausted).
func InstrumentedCallable(registry *Registry, bus *events.Bus, toolName string) Callable {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		bus.EmitSimple(events.TypeToolCallStart, events.ToolCallStartPayload{
			Tool:      toolName,
			Arguments: arguments,
		})

		result, err := registry.Invoke(ctx, Call{ToolName: toolName, Arguments: arguments})
		if err != nil {
			bus.EmitSimple(events.TypeToolCallError, events.ToolCallErrorPayload{
				Tool:     toolName,
				Error:    err.Error(),
				Attempts: 0,
			})
			return nil, err
		}

		if !result.Success {
			bus.EmitSimple(events.TypeToolCallError, events.ToolCallErrorPayload{
				Tool:     toolName,
				Error:    result.Error,
				Attempts: result.Attempts,
			})
			return nil, fmt.Errorf("tool %q failed after %d attempt(s): %s", toolName, result.Attempts, result.Error)
		}

		bus.EmitSimple(events.TypeToolCallComplete, events.ToolCallCompletePayload{
			Tool:       toolName,
			Result:     fmt.Sprint(result.Value),
			DurationMS: result.ExecutionTime.Milliseconds(),
			Attempts:   result.Attempts,
		})
		return result.Value, nil
	}
}
