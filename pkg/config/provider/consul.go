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
	"fmt"
	"log/slog"
	"time"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulProvider loads configuration from a single key in Consul's KV
// store and polls it for changes via a blocking query.
type ConsulProvider struct {
	client *consulapi.Client
	key    string

	lastIndex uint64
	closed    chan struct{}
}

// NewConsulProvider dials the Consul agent at endpoints[0] (or the
// client's default address if empty) and targets the given KV key.
func NewConsulProvider(key string, endpoints []string) (*ConsulProvider, error) {
	cfg := consulapi.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &ConsulProvider{client: client, key: key, closed: make(chan struct{})}, nil
}

// Type returns TypeConsul.
func (p *ConsulProvider) Type() Type { return TypeConsul }

// Load fetches the current value of the configured key.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, meta, err := p.client.KV().Get(p.key, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("consul kv get %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	if meta != nil {
		p.lastIndex = meta.LastIndex
	}
	return pair.Value, nil
}

// Watch issues blocking KV queries against the key and signals on the
// returned channel whenever the modify index advances.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.closed:
				return
			default:
			}

			opts := (&consulapi.QueryOptions{WaitIndex: p.lastIndex, WaitTime: 30 * time.Second}).WithContext(ctx)
			_, meta, err := p.client.KV().Get(p.key, opts)
			if err != nil {
				slog.Error("consul watch failed", "key", p.key, "error", err)
				time.Sleep(time.Second)
				continue
			}
			if meta != nil && meta.LastIndex != p.lastIndex {
				p.lastIndex = meta.LastIndex
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

// Close stops the watch loop.
func (p *ConsulProvider) Close() error {
	close(p.closed)
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
