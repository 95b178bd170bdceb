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

package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/vectorstore"
)

type stubChunkSource struct {
	chunks []PersistedChunk
	err    error
}

func (s stubChunkSource) Chunks(context.Context) ([]PersistedChunk, error) {
	return s.chunks, s.err
}

type stubEmbeddingClient struct {
	dims int
}

func (s stubEmbeddingClient) ModelName() string             { return "stub" }
func (s stubEmbeddingClient) Dimensions() int                { return s.dims }
func (s stubEmbeddingClient) Close() error                   { return nil }
func (s stubEmbeddingClient) RequiredEnvVars() []string       { return nil }
func (s stubEmbeddingClient) SupportedModels() []string       { return nil }
func (s stubEmbeddingClient) HealthCheck(context.Context) bool { return true }
func (s stubEmbeddingClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

type stubStore struct {
	deletedCollections []string
	createdCollections []string
	upserted           []vectorstore.Document
}

func (s *stubStore) Name() string { return "stub" }
func (s *stubStore) CreateCollection(_ context.Context, collection string, _ int) error {
	s.createdCollections = append(s.createdCollections, collection)
	return nil
}
func (s *stubStore) DeleteCollection(_ context.Context, collection string) error {
	s.deletedCollections = append(s.deletedCollections, collection)
	return nil
}
func (s *stubStore) Upsert(_ context.Context, _ string, doc vectorstore.Document) error {
	s.upserted = append(s.upserted, doc)
	return nil
}
func (s *stubStore) Delete(context.Context, string, string) error { return nil }
func (s *stubStore) DeleteByFilter(context.Context, string, vectorstore.Filter) error {
	return nil
}
func (s *stubStore) Search(context.Context, string, []float32, int, vectorstore.Filter) ([]vectorstore.Match, error) {
	return nil, nil
}
func (s *stubStore) Close() error { return nil }

func TestComputeSignatureReflectsProviderModelNormalizeDimensions(t *testing.T) {
	cfg := config.RAGConfig{
		Provider: "openai",
		Embedding: config.RAGEmbeddingConfig{
			Model:      "text-embedding-3-small",
			Normalize:  true,
			Dimensions: 1536,
		},
	}
	assert.Equal(t, Signature("openai:text-embedding-3-small:true:1536"), ComputeSignature(cfg))
}

func TestSyncSkipsReembedWhenSignatureUnchanged(t *testing.T) {
	cfg := config.RAGConfig{Provider: "openai", Embedding: config.RAGEmbeddingConfig{Model: "text-embedding-3-small"}}
	persisted := ComputeSignature(cfg)
	store := &stubStore{}
	source := stubChunkSource{chunks: []PersistedChunk{{DocumentID: "d1", CollectionID: "docs", Text: "hello"}}}

	got, err := Sync(context.Background(), store, stubEmbeddingClient{dims: 4}, source, cfg, persisted)
	require.NoError(t, err)
	assert.Equal(t, persisted, got)
	assert.Empty(t, store.deletedCollections)
	assert.Empty(t, store.upserted)
}

func TestSyncRebuildsEveryCollectionWhenSignatureChanges(t *testing.T) {
	cfg := config.RAGConfig{Provider: "openai", Embedding: config.RAGEmbeddingConfig{Model: "text-embedding-3-large", Dimensions: 4}}
	source := stubChunkSource{chunks: []PersistedChunk{
		{DocumentID: "d1", CollectionID: "docs", Text: "hello"},
		{DocumentID: "d2", CollectionID: "docs", Text: "world"},
		{DocumentID: "d3", CollectionID: "faq", Text: "other"},
	}}
	store := &stubStore{}

	got, err := Sync(context.Background(), store, stubEmbeddingClient{dims: 4}, source, cfg, "stale-signature")
	require.NoError(t, err)
	assert.Equal(t, ComputeSignature(cfg), got)
	assert.ElementsMatch(t, []string{"docs", "faq"}, store.deletedCollections)
	assert.ElementsMatch(t, []string{"docs", "faq"}, store.createdCollections)
	assert.Len(t, store.upserted, 3)
}

func TestSyncReturnsNewSignatureWithoutWorkWhenNoPersistedChunks(t *testing.T) {
	cfg := config.RAGConfig{Provider: "openai", Embedding: config.RAGEmbeddingConfig{Model: "text-embedding-3-large"}}
	store := &stubStore{}

	got, err := Sync(context.Background(), store, stubEmbeddingClient{dims: 4}, stubChunkSource{}, cfg, "stale-signature")
	require.NoError(t, err)
	assert.Equal(t, ComputeSignature(cfg), got)
	assert.Empty(t, store.deletedCollections)
}
