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

// MCPAdapter connects to Model Context Protocol servers, reusing one
// connection per ToolDefinition.Source (or Command, for stdio) across
// calls. stdio transport goes through mark3labs/mcp-go; the sse and
// streamable-http transports speak raw JSON-RPC over an
// httpclient.Client built for each connection, since mcp-go's own HTTP transports don't expose
// the retry/backoff hooks the rest of the runtime relies on.
package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/httpclient"
)

const sseResponseTimeout = 5 * time.Minute

// MCPAdapter is the Adapter implementation for config.TransportMCP.
type MCPAdapter struct {
	mu    sync.Mutex
	conns map[string]*mcpConnection
}

// NewMCPAdapter creates an empty MCPAdapter. Connections are opened
// lazily, on first Execute for a given tool definition.
func NewMCPAdapter() *MCPAdapter {
	return &MCPAdapter{conns: make(map[string]*mcpConnection)}
}

// Transport returns config.TransportMCP.
func (a *MCPAdapter) Transport() config.ToolTransport { return config.TransportMCP }

// Validate requires a recognized mcp_transport (defaulting to stdio)
// and the field that transport dials from: mcp_command for stdio,
// source (the server URL) otherwise.
func (a *MCPAdapter) Validate(def config.ToolDefinition) []string {
	var violations []string

	transport := def.MCPTransport
	if transport == "" {
		transport = "stdio"
	}
	switch transport {
	case "stdio":
		if def.MCPCommand == "" {
			violations = append(violations, "mcp_command is required for stdio mcp_transport")
		}
	case "http", "websocket", "sse":
		if def.Source == "" {
			violations = append(violations, fmt.Sprintf("source is required for %s mcp_transport", transport))
		}
	default:
		violations = append(violations, fmt.Sprintf("unrecognized mcp_transport %q (want stdio, http, websocket, or sse)", def.MCPTransport))
	}
	return violations
}

type mcpConnection struct {
	stdioClient *client.Client
	httpClient  *httpclient.Client
	url         string

	sessionMu sync.RWMutex
	sessionID string
}

func connectionKey(def config.ToolDefinition) string {
	if def.MCPTransport == "stdio" {
		return "stdio:" + def.MCPCommand + ":" + strings.Join(def.MCPArgs, ",")
	}
	return def.MCPTransport + ":" + def.Source
}

// Execute connects (if needed) to the MCP server named by def, then
// calls the remote tool def.Name with call.Arguments.
func (a *MCPAdapter) Execute(ctx context.Context, def config.ToolDefinition, call Call) (any, error) {
	if def.MCPTransport == "" {
		def.MCPTransport = "stdio"
	}
	conn, err := a.connection(ctx, def)
	if err != nil {
		return nil, &Error{Kind: ErrorConnection, Err: err}
	}

	if conn.stdioClient != nil {
		return a.callStdio(ctx, conn, def.Name, call.Arguments)
	}
	return a.callHTTP(ctx, conn, def.Name, call.Arguments)
}

func (a *MCPAdapter) connection(ctx context.Context, def config.ToolDefinition) (*mcpConnection, error) {
	key := connectionKey(def)

	a.mu.Lock()
	defer a.mu.Unlock()
	if conn, ok := a.conns[key]; ok {
		return conn, nil
	}

	var conn *mcpConnection
	var err error
	if def.MCPTransport == "stdio" {
		conn, err = dialStdio(ctx, def)
	} else {
		conn, err = dialHTTP(ctx, def)
	}
	if err != nil {
		return nil, err
	}
	a.conns[key] = conn
	return conn, nil
}

func dialStdio(ctx context.Context, def config.ToolDefinition) (*mcpConnection, error) {
	mcpClient, err := client.NewStdioMCPClient(def.MCPCommand, nil, def.MCPArgs...)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "fluxo", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("initialize mcp client: %w", err)
	}

	return &mcpConnection{stdioClient: mcpClient}, nil
}

func dialHTTP(ctx context.Context, def config.ToolDefinition) (*mcpConnection, error) {
	conn := &mcpConnection{
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(2*time.Second),
		),
		url: def.Source,
	}

	resp, err := conn.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "fluxo", "version": "1.0.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("mcp initialize error: %s", resp.Error.Message)
	}
	return conn, nil
}

func (a *MCPAdapter) callStdio(ctx context.Context, conn *mcpConnection, name string, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := conn.stdioClient.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call_tool %s: %w", name, err)
	}
	return extractMCPContent(resp.IsError, resp.Content)
}

func (a *MCPAdapter) callHTTP(ctx context.Context, conn *mcpConnection, name string, args map[string]any) (any, error) {
	resp, err := conn.rpc(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, fmt.Errorf("mcp call_tool %s: %w", name, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("mcp error: %s", resp.Error.Message)
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return resp.Result, nil
	}
	isErr, _ := resultMap["isError"].(bool)
	contentRaw, _ := resultMap["content"].([]any)

	var texts []string
	for _, c := range contentRaw {
		if cm, ok := c.(map[string]any); ok {
			if text, ok := cm["text"].(string); ok {
				texts = append(texts, text)
			}
		}
	}
	if isErr {
		if len(texts) > 0 {
			return nil, fmt.Errorf("%s", texts[0])
		}
		return nil, fmt.Errorf("mcp tool %s reported an error", name)
	}
	if len(texts) == 1 {
		return texts[0], nil
	}
	return texts, nil
}

func extractMCPContent(isError bool, content []mcp.Content) (any, error) {
	var texts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if isError {
		if len(texts) > 0 {
			return nil, fmt.Errorf("%s", texts[0])
		}
		return nil, fmt.Errorf("mcp tool reported an error")
	}
	if len(texts) == 1 {
		return texts[0], nil
	}
	return texts, nil
}

// rpc types and transport

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *mcpConnection) rpc(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	c.sessionMu.RLock()
	sessionID := c.sessionID
	c.sessionMu.RUnlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if newSessionID := resp.Header.Get("mcp-session-id"); newSessionID != "" {
		c.sessionMu.Lock()
		c.sessionID = newSessionID
		c.sessionMu.Unlock()
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(data))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(resp.Body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out jsonRPCResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

func readSSEResponse(body io.ReadCloser) (*jsonRPCResponse, error) {
	type result struct {
		resp *jsonRPCResponse
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer body.Close()
		reader := bufio.NewReader(body)
		var data strings.Builder

		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				break
			}
			text := strings.TrimSpace(string(line))
			if text == "" {
				if data.Len() > 0 {
					var resp jsonRPCResponse
					if json.Unmarshal([]byte(data.String()), &resp) == nil {
						ch <- result{resp: &resp}
						return
					}
					data.Reset()
				}
				continue
			}
			if strings.HasPrefix(text, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(text, "data:")))
			}
		}
		ch <- result{err: fmt.Errorf("sse stream ended without a complete message")}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-time.After(sseResponseTimeout):
		return nil, fmt.Errorf("timeout reading sse response after %v", sseResponseTimeout)
	}
}

// Close closes every open MCP connection.
func (a *MCPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, conn := range a.conns {
		if conn.stdioClient != nil {
			conn.stdioClient.Close()
		}
	}
	a.conns = make(map[string]*mcpConnection)
	return nil
}

var _ Adapter = (*MCPAdapter)(nil)
