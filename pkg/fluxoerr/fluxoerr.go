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

// Package fluxoerr classifies every failure the runtime can produce
// into one of a closed set of kinds, so the engine and its callers can
// decide retry/fallback/propagation behaviour without string-matching
// error messages.
package fluxoerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error classifications the runtime
// recognises. Every non-retryable kind that reaches the engine
// produces exactly one WORKFLOW_ERROR event.
type Kind string

const (
	ConfigInvalid              Kind = "config_invalid"
	ReferenceUnresolved        Kind = "reference_unresolved"
	ProviderMisconfigured      Kind = "provider_misconfigured"
	ToolValidationFailed       Kind = "tool_validation_failed"
	ToolExecutionFailed        Kind = "tool_execution_failed"
	ModelCallFailed            Kind = "model_call_failed"
	IterationBudgetExhausted   Kind = "iteration_budget_exhausted"
	Cancelled                  Kind = "cancelled"
	EmbeddingSignatureMismatch Kind = "embedding_signature_mismatch"
)

// retryable reports whether a kind is retried locally by the adapter
// or provider before being surfaced as a terminal failure upward. Kinds
// absent from this set are always terminal.
var retryable = map[Kind]bool{
	ToolExecutionFailed: true,
	ModelCallFailed:     true,
}

// Retryable reports whether errors of this kind may be retried locally
// before converting to a terminal failure.
func (k Kind) Retryable() bool { return retryable[k] }

// Error wraps a failure with its classified Kind. It is the single
// error type every package in this runtime that needs a classified
// failure should produce, rather than ad hoc sentinel errors.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Newf builds a classified error from a format string, matching the
// fmt.Errorf calling convention used throughout this codebase.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify extracts the Kind from err. Returns the zero Kind for
// errors that were never wrapped by this package — callers should
// treat that as "unclassified, terminal" rather than assume a kind.
func Classify(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is a classified Error of kind.
func Is(err error, kind Kind) bool {
	return Classify(err) == kind
}
