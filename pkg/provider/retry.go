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

package provider

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/tool"
)

// withRetry runs call under policy, retrying only errors whose classified
// kind appears in policy.RetryableErrors, with the same exponential
// backoff shape tool.ExecuteWithRetry uses: delay = min(initial *
// base^(attempt-1), max). This is the "same retry policy shape as
// tools" every chat and embedding call shares, grounded on
// original_source/src/worker/tools/adapters/local.py's
// _execute_with_retry/calculate_delay.
func withRetry[T any](ctx context.Context, policy config.RetryPolicy, call func(context.Context) (T, error)) (T, error) {
	policy.SetDefaults()

	retryable := make(map[tool.ErrorKind]bool, len(policy.RetryableErrors))
	for _, k := range policy.RetryableErrors {
		retryable[tool.ErrorKind(k)] = true
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		value, err := call(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		kind := ClassifyCallError(err)
		if !retryable[kind] || attempt == policy.MaxAttempts || ctx.Err() != nil {
			return zero, err
		}

		timer := time.NewTimer(backoffDelay(policy, attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

func backoffDelay(policy config.RetryPolicy, attempt int) time.Duration {
	base := policy.ExponentialBase
	if base <= 0 {
		base = 2
	}
	delayMS := float64(policy.InitialDelayMS) * math.Pow(base, float64(attempt-1))
	if max := float64(policy.MaxDelayMS); max > 0 && delayMS > max {
		delayMS = max
	}
	return time.Duration(delayMS) * time.Millisecond
}

// httpStatusError carries a raw HTTP status code for providers (ollama,
// cohere) that speak a plain REST endpoint instead of a generated
// vendor SDK, so ClassifyCallError can classify them the same way it
// does anthropic.Error/openai.APIError.
type httpStatusError struct {
	status int
	err    error
}

func (e *httpStatusError) Error() string { return e.err.Error() }
func (e *httpStatusError) Unwrap() error { return e.err }

func newHTTPStatusError(status int, err error) error {
	return &httpStatusError{status: status, err: err}
}

// ClassifyCallError maps a chat/embedding call failure onto the same
// closed ErrorKind vocabulary tool.Classify uses, per "rate-limit /
// timeout / connection / transient-status retryable; auth / permission
// not": a 429 is rate-limited, a 5xx (or the REST providers' generic
// status-based failure) is transient, a network-level timeout is
// ErrorTimeout, and everything else -- including 401/403 -- is
// permanent.
func ClassifyCallError(err error) tool.ErrorKind {
	if err == nil {
		return ""
	}

	if status, ok := statusCodeOf(err); ok {
		switch {
		case status == http.StatusTooManyRequests:
			return tool.ErrorRateLimited
		case status >= 500:
			return tool.ErrorTransientStatus
		default:
			return tool.ErrorPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return tool.ErrorTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return tool.ErrorTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return tool.ErrorConnection
	}

	return tool.ErrorPermanent
}

func statusCodeOf(err error) (int, bool) {
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return aerr.StatusCode, true
	}
	var operr *openai.APIError
	if errors.As(err, &operr) {
		return operr.HTTPStatusCode, true
	}
	var herr *httpStatusError
	if errors.As(err, &herr) {
		return herr.status, true
	}
	return 0, false
}
