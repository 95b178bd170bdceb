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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/vectorstore"
)

// KnowledgeCollection is a named group of ingested documents sharing a
// namespace and an embedding signature. The runtime never writes this
// entity — it is owned by whatever ingestion pipeline populates the
// on-disk catalogue; the runtime only reads it back to rebuild a vector
// store on restart.
type KnowledgeCollection struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Namespace          string    `json:"namespace"`
	EmbeddingSignature Signature `json:"embedding_signature"`
	DocumentCount      int       `json:"document_count"`
	ChunkCount         int       `json:"chunk_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type catalogueDocument struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id"`
}

type catalogueState struct {
	Collections        map[string]KnowledgeCollection `json:"collections"`
	Documents          map[string]catalogueDocument   `json:"documents"`
	EmbeddingSignature Signature                      `json:"embedding_signature"`
}

type catalogueChunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type catalogueChunkFile struct {
	Chunks []catalogueChunk `json:"chunks"`
}

// Catalogue is the read-only view of a knowledge-base root directory:
// state.json (the collection and document catalogue plus the last
// persisted embedding signature) and chunks/<document-id>.json (the
// chunked text and metadata for each ingested document). The runtime
// reads this layout; it never writes it.
type Catalogue struct {
	RootDir string
}

// Collections returns every KnowledgeCollection recorded in state.json.
func (c Catalogue) Collections(ctx context.Context) ([]KnowledgeCollection, error) {
	state, err := c.loadState()
	if err != nil {
		return nil, err
	}
	out := make([]KnowledgeCollection, 0, len(state.Collections))
	for _, col := range state.Collections {
		out = append(out, col)
	}
	return out, nil
}

// PersistedSignature returns the embedding signature recorded in
// state.json, or "" if the catalogue has never been populated.
func (c Catalogue) PersistedSignature(ctx context.Context) (Signature, error) {
	state, err := c.loadState()
	if err != nil {
		return "", err
	}
	return state.EmbeddingSignature, nil
}

// Chunks implements ChunkSource by reading every document's chunk file
// referenced from state.json, so Sync can rebuild a vector store's
// collections from the same on-disk catalogue the engine observes at
// restart.
func (c Catalogue) Chunks(ctx context.Context) ([]PersistedChunk, error) {
	state, err := c.loadState()
	if err != nil {
		return nil, err
	}

	var out []PersistedChunk
	for _, doc := range state.Documents {
		chunkPath := filepath.Join(c.RootDir, "chunks", doc.ID+".json")
		raw, err := os.ReadFile(chunkPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read chunks for document %q: %w", doc.ID, err)
		}
		var file catalogueChunkFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse chunks for document %q: %w", doc.ID, err)
		}
		for _, chunk := range file.Chunks {
			out = append(out, PersistedChunk{
				DocumentID:   doc.ID,
				CollectionID: doc.CollectionID,
				Text:         chunk.Text,
				Metadata:     chunk.Metadata,
			})
		}
	}
	return out, nil
}

// RebuildFromCatalogue reconciles store against the on-disk catalogue
// rooted at rootDir: it loads the persisted embedding signature and, if
// it no longer matches cfg, re-embeds every collection's chunks via Sync
// and repopulates store. It returns the collections recorded in the
// catalogue (for registering knowledge_config scoping) and the signature
// the caller should persist back to state.json.
func RebuildFromCatalogue(ctx context.Context, rootDir string, store vectorstore.Store, embeddings provider.EmbeddingClient, cfg config.RAGConfig) ([]KnowledgeCollection, Signature, error) {
	catalogue := Catalogue{RootDir: rootDir}

	collections, err := catalogue.Collections(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list collections: %w", err)
	}
	persisted, err := catalogue.PersistedSignature(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read persisted signature: %w", err)
	}

	signature, err := Sync(ctx, store, embeddings, catalogue, cfg, persisted)
	if err != nil {
		return nil, "", fmt.Errorf("rebuild vector store from catalogue: %w", err)
	}
	return collections, signature, nil
}

func (c Catalogue) loadState() (catalogueState, error) {
	path := filepath.Join(c.RootDir, "state.json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return catalogueState{}, nil
	}
	if err != nil {
		return catalogueState{}, fmt.Errorf("read %s: %w", path, err)
	}
	var state catalogueState
	if err := json.Unmarshal(raw, &state); err != nil {
		return catalogueState{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return state, nil
}
