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

package vectorstore

import (
	"context"
	"fmt"
)

// Kind identifies a Store implementation.
type Kind string

const (
	KindMemory  Kind = "memory"
	KindChromem Kind = "chromem"
	KindQdrant  Kind = "qdrant"
	KindPinecone Kind = "pinecone"
)

// Config is the discriminated union of backend configurations used by
// a knowledge collection's storage declaration.
type Config struct {
	Kind     Kind            `yaml:"kind" json:"kind"`
	Chromem  *ChromemConfig  `yaml:"chromem,omitempty" json:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty" json:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty"`
}

// SetDefaults fills in a zero-value Config with the memory backend.
func (c *Config) SetDefaults() {
	if c.Kind == "" {
		c.Kind = KindMemory
	}
}

// Validate checks that the configuration matches its declared kind.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindMemory, "":
		return nil
	case KindChromem:
		return nil
	case KindQdrant:
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant.host is required")
		}
		return nil
	case KindPinecone:
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone.api_key is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown vector store kind: %q", c.Kind)
	}
}

// New constructs the Store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindChromem:
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemStore(chromemCfg)
	case KindQdrant:
		return NewQdrantStore(*cfg.Qdrant)
	case KindPinecone:
		return NewPineconeStore(ctx, *cfg.Pinecone)
	default:
		return nil, fmt.Errorf("unknown vector store kind: %q", cfg.Kind)
	}
}
