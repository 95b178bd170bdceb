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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fluxo/pkg/config"
)

func writeCatalogueFixture(t *testing.T, root string, signature Signature) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "chunks"), 0o755))

	state := catalogueState{
		Collections: map[string]KnowledgeCollection{
			"docs": {ID: "docs", Name: "Docs", Namespace: "docs", EmbeddingSignature: signature},
		},
		Documents: map[string]catalogueDocument{
			"d1": {ID: "d1", CollectionID: "docs"},
		},
		EmbeddingSignature: signature,
	}
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "state.json"), raw, 0o644))

	chunks, err := json.Marshal(catalogueChunkFile{Chunks: []catalogueChunk{
		{Text: "hello world", Metadata: map[string]any{"source": "d1.md"}},
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "chunks", "d1.json"), chunks, 0o644))
}

func TestCatalogueReadsCollectionsAndChunks(t *testing.T) {
	root := t.TempDir()
	writeCatalogueFixture(t, root, "openai:text-embedding-3-small:true:1536")

	catalogue := Catalogue{RootDir: root}
	collections, err := catalogue.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, collections, 1)
	require.Equal(t, "docs", collections[0].ID)

	chunks, err := catalogue.Chunks(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "d1", chunks[0].DocumentID)
	require.Equal(t, "hello world", chunks[0].Text)
}

func TestCatalogueOnEmptyRootReturnsNoCollections(t *testing.T) {
	catalogue := Catalogue{RootDir: t.TempDir()}
	collections, err := catalogue.Collections(context.Background())
	require.NoError(t, err)
	require.Empty(t, collections)
}

func TestRebuildFromCatalogueSkipsReembedWhenSignatureMatches(t *testing.T) {
	root := t.TempDir()
	signature := ComputeSignature(config.RAGConfig{Provider: "openai", Embedding: config.RAGEmbeddingConfig{Model: "text-embedding-3-small"}})
	writeCatalogueFixture(t, root, signature)

	store := &stubStore{}
	cfg := config.RAGConfig{Provider: "openai", Embedding: config.RAGEmbeddingConfig{Model: "text-embedding-3-small"}}

	collections, got, err := RebuildFromCatalogue(context.Background(), root, store, stubEmbeddingClient{dims: 4}, cfg)
	require.NoError(t, err)
	require.Equal(t, signature, got)
	require.Len(t, collections, 1)
	require.Empty(t, store.deletedCollections)
}
