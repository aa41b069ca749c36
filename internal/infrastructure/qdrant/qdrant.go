package qdrant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

const metadataPrefix = "meta_"

// Store implements repository.VectorRepository using the official Qdrant Go
// SDK. Query text is embedded through the configured EmbeddingClient before
// hitting the index.
type Store struct {
	client     *pb.Client
	collection string
	embedder   repository.EmbeddingClient
	vectorSize uint64
}

// NewStore creates a new Qdrant store and ensures the target collection exists.
func NewStore(host string, port int, collection string, embedder repository.EmbeddingClient, vectorSize uint64) (*Store, error) {
	client, err := pb.NewClient(&pb.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	if vectorSize == 0 {
		vectorSize = 768
	}

	s := &Store{
		client:     client,
		collection: collection,
		embedder:   embedder,
		vectorSize: vectorSize,
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %q: %w", collection, err)
	}

	log.Printf("[Qdrant] Connected to %s:%d, collection=%s", host, port, collection)
	return s, nil
}

// ensureCollection creates the collection if it does not already exist.
func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     s.vectorSize,
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	log.Printf("[Qdrant] Created collection %q", s.collection)
	return nil
}

// Search embeds the query text and returns the nearest fragments. The hit
// distance is 1 - cosine similarity so downstream scoring can apply 1 - d
// uniformly.
func (s *Store) Search(ctx context.Context, query string, limit int, filter map[string]string) ([]model.VectorHit, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	req := &pb.QueryPoints{
		CollectionName: s.collection,
		Query:          pb.NewQuery(vectors[0]...),
		Limit:          pb.PtrOf(uint64(limit)),
		WithPayload:    pb.NewWithPayload(true),
	}
	if len(filter) > 0 {
		var conditions []*pb.Condition
		for key, value := range filter {
			conditions = append(conditions, pb.NewMatch(key, value))
		}
		req.Filter = &pb.Filter{Must: conditions}
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	hits := make([]model.VectorHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, pointToHit(point))
	}
	return hits, nil
}

func pointToHit(point *pb.ScoredPoint) model.VectorHit {
	hit := model.VectorHit{Distance: 1 - float64(point.Score)}

	metadata := map[string]string{}
	for key, value := range point.Payload {
		switch {
		case key == "fragment_id":
			hit.ID = value.GetStringValue()
		case key == "text":
			hit.Content = value.GetStringValue()
		case key == "doc_id":
			metadata["doc_id"] = value.GetStringValue()
		case strings.HasPrefix(key, metadataPrefix):
			metadata[strings.TrimPrefix(key, metadataPrefix)] = value.GetStringValue()
		}
	}
	if len(metadata) > 0 {
		hit.Metadata = metadata
	}
	return hit
}

// InsertFragments embeds and upserts document fragments. Point ids are
// deterministic UUIDs derived from the fragment id, so re-ingesting a
// fragment overwrites its previous point.
func (s *Store) InsertFragments(ctx context.Context, docID string, fragments []model.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	texts := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		texts = append(texts, frag.Content)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("fragment embedding failed: %w", err)
	}
	if len(vectors) != len(fragments) {
		return fmt.Errorf("embedder returned %d vectors for %d fragments", len(vectors), len(fragments))
	}

	points := make([]*pb.PointStruct, 0, len(fragments))
	for i, frag := range fragments {
		payload := map[string]any{
			"fragment_id": frag.ID,
			"doc_id":      docID,
			"text":        frag.Content,
		}
		for key, value := range frag.Metadata {
			payload[metadataPrefix+key] = value
		}

		pointID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(frag.ID)).String()
		points = append(points, &pb.PointStruct{
			Id:      pb.NewIDUUID(pointID),
			Vectors: pb.NewVectors(vectors[i]...),
			Payload: pb.NewValueMap(payload),
		})
	}

	_, err = s.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}

	log.Printf("[Qdrant] Upserted %d points for doc %s", len(points), docID)
	return nil
}

// DeleteDocument deletes all points belonging to a document by filtering on
// the doc_id payload.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.client.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						pb.NewMatch("doc_id", docID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed for doc %s: %w", docID, err)
	}

	log.Printf("[Qdrant] Deleted points for doc %s", docID)
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
