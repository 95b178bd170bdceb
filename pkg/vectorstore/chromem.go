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
	"log/slog"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded chromem-go backend. It requires
// no external services. It is not the default backend: a Config with no
// Kind uses the in-memory store (see Config.SetDefaults).
type ChromemConfig struct {
	// PersistPath, when set, persists the database to this directory
	// as a (optionally gzip-compressed) gob file.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	// Compress enables gzip compression for the persisted file.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// ChromemStore implements Store using an embedded chromem-go database.
// Vectors are always supplied pre-computed by the RAG runtime, so the
// collection's embedding function is never invoked.
type ChromemStore struct {
	mu          sync.RWMutex
	db          *chromem.DB
	persistPath string
	compress    bool
	collections map[string]*chromem.Collection
}

// NewChromemStore opens (or creates) a chromem-go database per cfg.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("create persist directory: %w", err)
		}

		dbPath := cfg.PersistPath + "/vectors.gob"
		if cfg.Compress {
			dbPath += ".gz"
		}

		if _, err := os.Stat(dbPath); err == nil {
			loaded, loadErr := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if loadErr != nil {
				slog.Warn("failed to load existing vector database, starting fresh", "path", dbPath, "error", loadErr)
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:          db,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) Name() string { return "chromem" }

func refusingEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem embedding function invoked, but vectors must be pre-computed by the caller")
}

func (s *ChromemStore) collection(ctx context.Context, name string) (*chromem.Collection, error) {
	s.mu.RLock()
	if col, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(refusingEmbed))
	if err != nil {
		return nil, fmt.Errorf("get/create collection %q: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

func (s *ChromemStore) CreateCollection(ctx context.Context, collection string, _ int) error {
	_, err := s.collection(ctx, collection)
	return err
}

func (s *ChromemStore) DeleteCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(s.collections, collection)
	return s.persist()
}

func (s *ChromemStore) Upsert(ctx context.Context, collection string, doc Document) error {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}

	metadata := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = fmt.Sprint(v)
	}

	if err := col.AddDocuments(ctx, []chromem.Document{{
		ID:        doc.ID,
		Content:   doc.Content,
		Metadata:  metadata,
		Embedding: doc.Vector,
	}}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return s.persist()
}

func (s *ChromemStore) Delete(ctx context.Context, collection string, id string) error {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return s.persist()
}

func (s *ChromemStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	where := stringifyFilter(filter)
	if err := col.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("delete by filter: %w", err)
	}
	return s.persist()
}

func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Match, error) {
	col, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	// chromem's native `where` only supports equality; "$in" filters are
	// re-applied in-process after the call below.
	where := stringifyFilter(onlyEquality(filter))
	results, err := col.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		if !MatchesFilter(metadata, filter) {
			continue
		}
		matches = append(matches, Match{
			DocumentID: r.ID,
			Score:      float64(r.Similarity),
			Content:    r.Content,
			Metadata:   metadata,
		})
	}
	SortMatches(matches)
	return matches, nil
}

func (s *ChromemStore) Close() error {
	return s.persist()
}

func (s *ChromemStore) persist() error {
	if s.persistPath == "" {
		return nil
	}
	dbPath := s.persistPath + "/vectors.gob"
	if s.compress {
		dbPath += ".gz"
	}
	//nolint:staticcheck // Export is the current persistence API for a single-file snapshot.
	if err := s.db.Export(dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("persist database: %w", err)
	}
	return nil
}

// stringifyFilter converts an equality-only filter into chromem's
// string-keyed where clause.
func stringifyFilter(filter Filter) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	where := make(map[string]string, len(filter))
	for k, v := range filter {
		where[k] = fmt.Sprint(v)
	}
	return where
}

// onlyEquality strips "$in" constraints, which chromem cannot evaluate
// natively, leaving them to be re-checked against the raw results.
func onlyEquality(filter Filter) Filter {
	out := make(Filter, len(filter))
	for k, v := range filter {
		if _, isIn := v.(map[string]any); isIn {
			continue
		}
		out[k] = v
	}
	return out
}

var _ Store = (*ChromemStore)(nil)
