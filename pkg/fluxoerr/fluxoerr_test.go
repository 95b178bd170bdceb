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

package fluxoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReturnsWrappedKind(t *testing.T) {
	err := New(ToolExecutionFailed, errors.New("boom"))
	assert.Equal(t, ToolExecutionFailed, Classify(err))
	assert.True(t, Is(err, ToolExecutionFailed))
}

func TestClassifyReturnsZeroKindForPlainErrors(t *testing.T) {
	assert.Equal(t, Kind(""), Classify(errors.New("plain")))
}

func TestRetryableDistinguishesTerminalKinds(t *testing.T) {
	assert.True(t, ToolExecutionFailed.Retryable())
	assert.True(t, ModelCallFailed.Retryable())
	assert.False(t, ConfigInvalid.Retryable())
	assert.False(t, Cancelled.Retryable())
	assert.False(t, IterationBudgetExhausted.Retryable())
}

func TestNewReturnsNilForNilError(t *testing.T) {
	assert.NoError(t, New(ModelCallFailed, nil))
}

func TestErrorUnwrapsToUnderlyingError(t *testing.T) {
	underlying := errors.New("root cause")
	wrapped := New(ProviderMisconfigured, underlying)
	assert.ErrorIs(t, wrapped, underlying)
}
