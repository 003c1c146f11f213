// Package weaviate adapts the Weaviate client to the embedding-index
// interfaces the ingestion worker and the retrieval filter depend on.
package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"orgdocs/backend/internal/ingest"
	"orgdocs/backend/internal/retrieval"
	"orgdocs/backend/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// ReplaceDocumentChunks deletes every chunk owned by docID and writes the
// new batch. Replace-not-append is what keeps re-ingestion and at-least-once
// dispatch from duplicating chunks.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, docID int64, chunks []ingest.Chunk) error {
	if err := s.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("clearing previous chunks for document %d: %w", docID, err)
	}

	objects := make([]*models.Object, 0, len(chunks))
	for _, chunk := range chunks {
		objects = append(objects, &models.Object{
			Class: vector.ClassName,
			Properties: map[string]interface{}{
				"content":    chunk.Content,
				"docId":      chunk.DocID,
				"chunkIndex": chunk.ChunkIndex,
			},
			Vector: models.C11yVector(chunk.Vector),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return err
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert error: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// DeleteByDocument removes all chunks carrying docID. Used for replacement
// before indexing and by document deletion.
func (s *Store) DeleteByDocument(ctx context.Context, docID int64) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"docId"}).
			WithOperator(filters.Equal).
			WithValueInt(docID)).
		Do(ctx)
	return err
}

// Search returns up to limit chunks nearest to the query vector, best first.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]retrieval.Result, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "docId"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var results []retrieval.Result
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	chunks, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return results, nil
	}

	for _, c := range chunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		var result retrieval.Result
		if content, ok := props["content"].(string); ok {
			result.Content = content
		}
		if docID, ok := props["docId"].(float64); ok {
			result.DocumentID = int64(docID)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				// Cosine distance in [0,2]; closer is better.
				result.Score = float32(1 - distance)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// CountChunks reports the total number of indexed chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[vector.ClassName].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
