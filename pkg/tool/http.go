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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/httpclient"
)

var envPlaceholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// HTTPAdapter invokes tools backed by a plain HTTP endpoint, sending
// call.Arguments as query parameters for GET and as a JSON body for
// every other method, decoding the JSON response.
//
// Retries are owned entirely by the tool's RetryPolicy via
// ExecuteWithRetry, so the underlying httpclient.Client is built with
// NoRetry to avoid retrying twice.
//
// A single default (TLS-verifying) client is shared across every
// invocation of every HTTP tool, matching every other adapter's
// one-client-per-transport model; tools that set verify_ssl: false get
// a second, lazily-built insecure client, also shared across their own
// invocations rather than rebuilt per call.
type HTTPAdapter struct {
	client *httpclient.Client

	insecureMu     sync.Mutex
	insecureClient *httpclient.Client
}

// NewHTTPAdapter creates an HTTPAdapter.
func NewHTTPAdapter() *HTTPAdapter {
	return &HTTPAdapter{client: newNoRetryClient(nil)}
}

func newNoRetryClient(tlsConfig *httpclient.TLSConfig) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithRetryStrategy(func(int) httpclient.RetryStrategy { return httpclient.NoRetry }),
	}
	if tlsConfig != nil {
		opts = append(opts, httpclient.WithTLSConfig(tlsConfig))
	}
	return httpclient.New(opts...)
}

// clientFor returns the shared verifying client, or the shared
// insecure one (built on first use) when def disables verify_ssl.
func (a *HTTPAdapter) clientFor(def config.ToolDefinition) *httpclient.Client {
	if def.VerifySSL == nil || *def.VerifySSL {
		return a.client
	}
	a.insecureMu.Lock()
	defer a.insecureMu.Unlock()
	if a.insecureClient == nil {
		a.insecureClient = newNoRetryClient(&httpclient.TLSConfig{InsecureSkipVerify: true})
	}
	return a.insecureClient
}

// Transport returns config.TransportHTTP.
func (a *HTTPAdapter) Transport() config.ToolTransport { return config.TransportHTTP }

var validHTTPMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodHead: true, http.MethodOptions: true,
}

var validAuthSchemes = map[string]bool{"": true, "bearer": true, "basic": true, "api-key": true}

// Validate requires def.Source to be an http(s) URL, def.Method (when
// set) to be a recognized verb, and def.Auth (when set) to be one of
// the three supported schemes.
func (a *HTTPAdapter) Validate(def config.ToolDefinition) []string {
	var violations []string

	if !strings.HasPrefix(def.Source, "http://") && !strings.HasPrefix(def.Source, "https://") {
		violations = append(violations, fmt.Sprintf("source must be an http(s) URL, got %q", def.Source))
	}
	if def.Method != "" && !validHTTPMethods[strings.ToUpper(def.Method)] {
		violations = append(violations, fmt.Sprintf("invalid HTTP method %q", def.Method))
	}
	if !validAuthSchemes[strings.ToLower(def.Auth)] {
		violations = append(violations, fmt.Sprintf("invalid auth scheme %q (want bearer, basic, or api-key)", def.Auth))
	}
	return violations
}

// Execute issues an HTTP request to def.Source with call.Arguments as
// query parameters (GET) or a JSON body (every other method), with
// headers resolved for {token}/{ENV_VAR} placeholders and the auth
// scheme's own header applied, then decodes the response per
// def.ResponsePath if set.
func (a *HTTPAdapter) Execute(ctx context.Context, def config.ToolDefinition, call Call) (any, error) {
	method := strings.ToUpper(def.Method)
	if method == "" {
		method = http.MethodPost
	}

	reqURL := def.Source
	var bodyReader io.Reader
	if method == http.MethodGet {
		u, err := url.Parse(def.Source)
		if err != nil {
			return nil, &Error{Kind: ErrorPermanent, Err: fmt.Errorf("parse source url: %w", err)}
		}
		q := u.Query()
		for k, v := range call.Arguments {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	} else {
		body, err := json.Marshal(call.Arguments)
		if err != nil {
			return nil, &Error{Kind: ErrorInvalidArgs, Err: err}
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, &Error{Kind: ErrorPermanent, Err: err}
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range resolveHeaders(def.Headers, call.AuthToken) {
		req.Header.Set(k, v)
	}
	applyAuth(req, def.Auth, call.AuthToken)

	// With retries disabled, Do returns the response together with an
	// error for a non-2xx status; only a missing response is a connection
	// failure, and the status is classified below.
	resp, err := a.clientFor(def).Do(req)
	if err != nil && resp == nil {
		return nil, &Error{Kind: ErrorConnection, Err: err}
	}
	defer resp.Body.Close()

	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Kind: ErrorPermanent, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &Error{Kind: ErrorRateLimited, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 500 {
		return nil, &Error{Kind: ErrorTransientStatus, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: ErrorPermanent, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return extractResponsePath(decoded, def.ResponsePath), nil
}

// resolveHeaders substitutes {token} with authToken (when non-empty)
// and any other {NAME} placeholder with os.Getenv(NAME), leaving
// unresolved placeholders as-is.
func resolveHeaders(headers map[string]string, authToken string) map[string]string {
	resolved := make(map[string]string, len(headers))
	for k, v := range headers {
		if !strings.Contains(v, "{") {
			resolved[k] = v
			continue
		}
		if authToken != "" {
			v = strings.ReplaceAll(v, "{token}", authToken)
		}
		v = envPlaceholder.ReplaceAllStringFunc(v, func(match string) string {
			name := match[1 : len(match)-1]
			if name == "token" {
				return match
			}
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			return match
		})
		resolved[k] = v
	}
	return resolved
}

// applyAuth sets the request's Authorization header per scheme, when
// both a scheme and a token are present. bearer and api-key send the
// token directly (prefixed "Bearer " for bearer); basic treats the
// token as "user:password" and base64-encodes it.
func applyAuth(req *http.Request, scheme, token string) {
	if token == "" {
		return
	}
	switch strings.ToLower(scheme) {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+token)
	case "api-key":
		req.Header.Set("Authorization", token)
	case "basic":
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(token)))
	}
}

// extractResponsePath walks a dotted path ("data.results") into a
// decoded JSON value, returning the whole value if path is empty or
// any segment doesn't resolve.
func extractResponsePath(value any, path string) any {
	if path == "" {
		return value
	}
	cur := value
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return value
		}
		next, ok := m[seg]
		if !ok {
			return value
		}
		cur = next
	}
	return cur
}

// Close is a no-op: the underlying httpclient.Client holds no
// per-instance resources beyond a shared *http.Client.
func (a *HTTPAdapter) Close() error { return nil }

var _ Adapter = (*HTTPAdapter)(nil)
