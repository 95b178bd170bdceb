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
	"fmt"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/vectorstore"
)

// Signature identifies the embedding configuration a collection's vectors
// were generated under: provider, model, normalise flag, and dimensions.
// Two configs with the same Signature produce comparable vectors; any
// difference forces a full re-embed.
type Signature string

// ComputeSignature derives the Signature for a RAG config.
func ComputeSignature(cfg config.RAGConfig) Signature {
	return Signature(fmt.Sprintf("%s:%s:%t:%d",
		cfg.Provider, cfg.Embedding.Model, cfg.Embedding.Normalize, cfg.Embedding.Dimensions))
}

// PersistedChunk is one previously-ingested, chunked piece of a document,
// read back from on-disk storage. Text is re-embedded whenever the
// collection's Signature no longer matches the current config.
type PersistedChunk struct {
	DocumentID   string
	CollectionID string
	Text         string
	Metadata     map[string]any
}

// ChunkSource supplies every persisted chunk across every collection, for
// Sync to rebuild a vector store from. Implementations read from whatever
// on-disk catalogue backs the knowledge base (one file per document).
type ChunkSource interface {
	Chunks(ctx context.Context) ([]PersistedChunk, error)
}

// Sync reconciles a vector store against the embedding configuration in
// cfg. If cfg's Signature matches persisted, the store is already aligned
// and Sync returns immediately. Otherwise it clears every collection that
// holds persisted chunks, re-embeds their text under the new
// configuration, and repopulates the store — mirroring the re-indexing a
// knowledge base performs when its embedding provider changes. The
// returned Signature must be saved by the caller as the new persisted
// value regardless of outcome.
func Sync(ctx context.Context, store vectorstore.Store, embeddings provider.EmbeddingClient, source ChunkSource, cfg config.RAGConfig, persisted Signature) (Signature, error) {
	signature := ComputeSignature(cfg)
	if signature == persisted {
		return signature, nil
	}

	chunks, err := source.Chunks(ctx)
	if err != nil {
		return persisted, fmt.Errorf("load persisted chunks: %w", err)
	}
	if len(chunks) == 0 {
		return signature, nil
	}

	byCollection := make(map[string][]PersistedChunk)
	for _, c := range chunks {
		byCollection[c.CollectionID] = append(byCollection[c.CollectionID], c)
	}

	for collection, collectionChunks := range byCollection {
		if err := store.DeleteCollection(ctx, collection); err != nil {
			return persisted, fmt.Errorf("clear collection %q before re-embed: %w", collection, err)
		}

		texts := make([]string, len(collectionChunks))
		for i, c := range collectionChunks {
			texts[i] = c.Text
		}
		vectors, err := embeddings.Embed(ctx, texts)
		if err != nil {
			return persisted, fmt.Errorf("re-embed collection %q: %w", collection, err)
		}
		if len(vectors) != len(collectionChunks) {
			return persisted, fmt.Errorf("re-embed collection %q: got %d vectors for %d chunks", collection, len(vectors), len(collectionChunks))
		}

		if err := store.CreateCollection(ctx, collection, embeddings.Dimensions()); err != nil {
			return persisted, fmt.Errorf("recreate collection %q: %w", collection, err)
		}
		for i, c := range collectionChunks {
			doc := vectorstore.Document{
				ID:       c.DocumentID,
				Vector:   vectors[i],
				Content:  c.Text,
				Metadata: c.Metadata,
			}
			if err := store.Upsert(ctx, collection, doc); err != nil {
				return persisted, fmt.Errorf("repopulate collection %q: %w", collection, err)
			}
		}
	}

	return signature, nil
}
