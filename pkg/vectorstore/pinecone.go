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

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the managed Pinecone backend. Pinecone indexes
// are pre-dimensioned, so CreateCollection creates nothing: the index
// named by IndexName must already exist, and NewPineconeStore looks it up.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	Host      string `yaml:"host,omitempty" json:"host,omitempty"`
	IndexName string `yaml:"index_name" json:"index_name"`
}

// PineconeStore implements Store against a managed Pinecone index.
type PineconeStore struct {
	client    *pinecone.Client
	indexConn *pinecone.IndexConnection
	cfg       PineconeConfig
}

// NewPineconeStore connects to the configured Pinecone index.
func NewPineconeStore(ctx context.Context, cfg PineconeConfig) (*PineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone api_key is required")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "fluxo-index"
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}

	idx, err := client.DescribeIndex(ctx, cfg.IndexName)
	if err != nil {
		return nil, fmt.Errorf("describe pinecone index %q: %w", cfg.IndexName, err)
	}

	conn, err := client.Index(pinecone.NewIndexConnParams{Host: idx.Host})
	if err != nil {
		return nil, fmt.Errorf("connect to pinecone index %q: %w", cfg.IndexName, err)
	}

	return &PineconeStore{client: client, indexConn: conn, cfg: cfg}, nil
}

func (s *PineconeStore) Name() string { return "pinecone" }

// CreateCollection is a no-op: Pinecone indexes are provisioned out of
// band (via the Pinecone console/API), not created per collection here.
func (s *PineconeStore) CreateCollection(context.Context, string, int) error { return nil }

// DeleteCollection deletes every vector in the given namespace, leaving
// the underlying Pinecone index intact.
func (s *PineconeStore) DeleteCollection(ctx context.Context, collection string) error {
	return s.indexConn.DeleteAllVectorsInNamespace(ctx, collection)
}

func (s *PineconeStore) Upsert(ctx context.Context, collection string, doc Document) error {
	metadata, err := structpb.NewStruct(withContent(doc.Metadata, doc.Content))
	if err != nil {
		return fmt.Errorf("convert metadata: %w", err)
	}

	_, err = s.indexConn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       doc.ID,
		Values:   &doc.Vector,
		Metadata: metadata,
	}})
	if err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}
	return nil
}

func (s *PineconeStore) Delete(ctx context.Context, _ string, id string) error {
	return s.indexConn.DeleteVectorsById(ctx, []string{id})
}

func (s *PineconeStore) DeleteByFilter(ctx context.Context, _ string, filter Filter) error {
	f, err := structpb.NewStruct(buildPineconeFilter(filter))
	if err != nil {
		return fmt.Errorf("convert filter: %w", err)
	}
	return s.indexConn.DeleteVectorsByFilter(ctx, f)
}

func (s *PineconeStore) Search(ctx context.Context, _ string, vector []float32, topK int, filter Filter) ([]Match, error) {
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		f, err := structpb.NewStruct(buildPineconeFilter(filter))
		if err != nil {
			return nil, fmt.Errorf("convert filter: %w", err)
		}
		req.MetadataFilter = f
	}

	resp, err := s.indexConn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query pinecone: %w", err)
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		metadata := map[string]any{}
		if m.Vector != nil && m.Vector.Metadata != nil {
			metadata = m.Vector.Metadata.AsMap()
		}
		content, _ := metadata["content"].(string)
		matches = append(matches, Match{
			DocumentID: m.Vector.Id,
			Score:      float64(m.Score),
			Content:    content,
			Metadata:   metadata,
		})
	}
	SortMatches(matches)
	return matches, nil
}

func (s *PineconeStore) Close() error { return nil }

func withContent(metadata map[string]any, content string) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if content != "" {
		out["content"] = content
	}
	return out
}

// buildPineconeFilter translates "$in" constraints into Pinecone's native
// $in operator and leaves scalar values as implicit equality.
func buildPineconeFilter(filter Filter) map[string]any {
	out := make(map[string]any, len(filter))
	for key, want := range filter {
		if spec, isIn := want.(map[string]any); isIn {
			out[key] = map[string]any{"$in": spec["$in"]}
			continue
		}
		out[key] = want
	}
	return out
}

var _ Store = (*PineconeStore)(nil)
