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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	cfgprovider "github.com/kadirpekel/fluxo/pkg/config/provider"
)

// Load reads, parses, env-expands and validates the document at path,
// auto-detecting YAML vs JSON from its extension. It returns every
// validation error found, not just the first.
func Load(ctx context.Context, path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	prov, err := cfgprovider.NewFileProvider(path)
	if err != nil {
		return nil, err
	}
	defer prov.Close()

	raw, err := prov.Load(ctx)
	if err != nil {
		return nil, err
	}

	return parse(raw, path)
}

// LoadBytes parses raw configuration bytes directly, for callers that
// already hold the document in memory (tests, embedded defaults).
func LoadBytes(raw []byte, hintExt string) (*Config, error) {
	return parse(raw, "config"+hintExt)
}

func parse(raw []byte, path string) (*Config, error) {
	k := koanf.New(".")

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = json.Parser()
	default:
		parser = yaml.Parser()
	}

	if err := k.Load(rawbytes.Provider(raw), parser); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	expanded := ExpandEnvVarsInData(k.Raw())
	k = koanf.New(".")
	m, ok := expanded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config %s: root must be a mapping", path)
	}
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, fmt.Errorf("load expanded config %s: %w", path, err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	bindModelIDs(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &cfg, nil
}

// bindModelIDs copies each model map key into its ModelReference.ID,
// since koanf unmarshals map values without retaining their own key.
func bindModelIDs(cfg *Config) {
	for id, ref := range cfg.Resources.Models {
		ref.ID = id
		cfg.Resources.Models[id] = ref
	}
}
