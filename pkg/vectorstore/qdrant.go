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
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port,omitempty" json:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty" json:"use_tls,omitempty"`
}

// QdrantStore implements Store against a Qdrant cluster over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	cfg    QdrantConfig
}

// NewQdrantStore dials the configured Qdrant instance.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

func (s *QdrantStore) Name() string { return "qdrant" }

func (s *QdrantStore) CreateCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	return s.client.DeleteCollection(ctx, collection)
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, doc Document) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		if err := s.CreateCollection(ctx, collection, len(doc.Vector)); err != nil &&
			!strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("convert metadata %q: %w", k, err)
		}
		payload[k] = val
	}
	if doc.Content != "" {
		payload["content"] = qdrant.NewValueString(doc.Content)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

func (s *QdrantStore) Delete(ctx context.Context, collection string, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: buildQdrantFilter(filter)},
		},
	})
	if err != nil {
		return fmt.Errorf("delete by filter: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Match, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if len(filter) > 0 {
		req.Filter = buildQdrantFilter(filter)
	}

	result, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	matches := make([]Match, 0, len(result.Result))
	for _, point := range result.Result {
		metadata := make(map[string]any, len(point.Payload))
		for k, v := range point.Payload {
			metadata[k] = qdrantValueToAny(v)
		}
		content, _ := metadata["content"].(string)
		var id string
		if point.Id != nil {
			switch idType := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = idType.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", idType.Num)
			}
		}
		matches = append(matches, Match{
			DocumentID: id,
			Score:      float64(point.Score),
			Content:    content,
			Metadata:   metadata,
		})
	}
	SortMatches(matches)
	return matches, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// buildQdrantFilter translates a Filter into Qdrant's condition tree.
// "$in" constraints become a keyword match-any condition; everything
// else becomes equality.
func buildQdrantFilter(filter Filter) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, want := range filter {
		if spec, isIn := want.(map[string]any); isIn {
			values, _ := spec["$in"].([]any)
			keywords := make([]string, 0, len(values))
			for _, v := range values {
				keywords = append(keywords, fmt.Sprint(v))
			}
			conditions = append(conditions, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   key,
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: keywords}}},
					},
				},
			})
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprint(want)}},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func qdrantValueToAny(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return v
	}
}

var _ Store = (*QdrantStore)(nil)
