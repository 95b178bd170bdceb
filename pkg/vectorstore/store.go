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

// Package vectorstore defines the vector storage abstraction used by the
// RAG context pipeline and the concrete backends that implement it.
//
// A Store holds embedded documents inside named collections and
// answers similarity queries against them. Backends range from an
// embedded, zero-config store (chromem) to external services (Qdrant,
// Pinecone) reachable over the network.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Document is a single embedded chunk stored in a collection.
type Document struct {
	// ID uniquely identifies the document within its collection.
	ID string

	// Vector is the embedding produced by the provider configured for
	// the owning knowledge collection.
	Vector []float32

	// Content is the raw chunk text, stored as metadata["content"] by
	// backends that only support string-keyed payloads.
	Content string

	// Metadata carries arbitrary attributes (source, path, namespace, ...)
	// used for filtering and for building context prompts.
	Metadata map[string]any
}

// Match is a single similarity search result.
type Match struct {
	DocumentID string
	Score      float64
	Content    string
	Metadata   map[string]any
}

// Filter expresses an equality or membership constraint over metadata.
// A bare value means equality; a value wrapped with In means membership
// in a set, mirroring the "$in" operator of the pipeline this runtime
// replaces.
type Filter map[string]any

// In wraps a slice of candidate values for membership filtering, e.g.
//
//	vectorstore.Filter{"source": vectorstore.In("a.md", "b.md")}
func In(values ...any) map[string]any {
	return map[string]any{"$in": values}
}

// Store is the interface every backend implements. Collections are
// created implicitly by the first Upsert unless CreateCollection is
// called explicitly with a known dimension.
type Store interface {
	// Name identifies the backend, e.g. "chromem", "qdrant", "pinecone".
	Name() string

	// CreateCollection ensures a collection exists with the given vector
	// dimension. Safe to call when the collection already exists.
	CreateCollection(ctx context.Context, collection string, dimension int) error

	// DeleteCollection removes a collection and all its documents.
	DeleteCollection(ctx context.Context, collection string) error

	// Upsert inserts or overwrites a document by ID.
	Upsert(ctx context.Context, collection string, doc Document) error

	// Delete removes a single document by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every document matching filter.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error

	// Search returns the topK closest documents to vector, optionally
	// constrained by filter. Results are sorted by descending score.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Match, error)

	// Close releases resources (connections, file handles, ...).
	Close() error
}

// CosineSimilarity returns the cosine similarity between two equal-length
// vectors, in [-1, 1]. Returns 0 if either vector has zero magnitude or
// the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// MatchesFilter reports whether metadata satisfies every constraint in
// filter. A filter value of map[string]any{"$in": [...]} requires
// membership; any other value requires equality for a scalar
// metadata[key], or list-intersection (does any element equal the
// filter value) when metadata[key] is itself list-valued. All
// comparisons go through fmt.Sprint to tolerate numeric/string
// mismatches coming from wire-format backends.
func MatchesFilter(metadata map[string]any, filter Filter) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if spec, isIn := want.(map[string]any); isIn {
			values, _ := spec["$in"].([]any)
			if !matchesAny(got, values) {
				return false
			}
			continue
		}
		if !matchesOne(got, want) {
			return false
		}
	}
	return true
}

// matchesOne reports whether got equals want, or, when got is a
// list-valued metadata field, whether want matches any of its elements.
func matchesOne(got, want any) bool {
	if list, ok := asSlice(got); ok {
		for _, elem := range list {
			if fmt.Sprint(elem) == fmt.Sprint(want) {
				return true
			}
		}
		return false
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// matchesAny reports whether got matches any of values under the same
// scalar-equality/list-intersection rule matchesOne applies per element.
func matchesAny(got any, values []any) bool {
	for _, want := range values {
		if matchesOne(got, want) {
			return true
		}
	}
	return false
}

// asSlice reports whether v is a list-valued metadata field, returning
// its elements as []any. Covers both []any (JSON-decoded backends) and
// []string (Go-native callers building Document.Metadata directly).
func asSlice(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// SortMatches orders matches by descending score, breaking ties by
// document ID for deterministic output.
func SortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DocumentID < matches[j].DocumentID
	})
}
