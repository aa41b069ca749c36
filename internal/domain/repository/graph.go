package repository

import (
	"context"

	"github.com/docsage/docsage-api/internal/domain/model"
)

// GraphRepository defines the interface for the persisted entity graph.
// Edges are stored directed but expansion traverses them in either
// direction. Implementations must be safe for concurrent use.
type GraphRepository interface {
	// FindNode returns the node with the given name, or (nil, nil) when it
	// does not exist.
	FindNode(ctx context.Context, name string) (*model.GraphNode, error)

	// ExpandNeighbors returns nodes reachable from name within maxDepth hops,
	// ordered by increasing hop distance, each carrying the relation-type
	// labels traversed to reach it. relationFilter, when non-empty, restricts
	// traversal to edges of those relation types.
	ExpandNeighbors(ctx context.Context, name string, maxDepth int, relationFilter []string) ([]model.Neighbor, error)

	// ShortestPath returns a fewest-hop path between two named nodes within
	// maxDepth, or nil when they are disconnected or either name is absent.
	// The tie-break between equal-length paths must be deterministic for a
	// given graph snapshot.
	ShortestPath(ctx context.Context, source, target string, maxDepth int) (*model.Path, error)

	// MaterializeSubgraph returns the raw nodes and edges reachable within
	// maxDepth of the given seeds. Duplicates and edges with out-of-set
	// endpoints may appear; the traversal engine deduplicates and filters.
	MaterializeSubgraph(ctx context.Context, names []string, maxDepth int) ([]model.GraphNode, []model.GraphEdge, error)

	// InsertEntities upserts entity nodes extracted from a document.
	InsertEntities(ctx context.Context, docID string, entities []model.GraphNode) error

	// InsertRelations upserts relationships between already-inserted entities.
	InsertRelations(ctx context.Context, docID string, relations []model.GraphEdge) error

	// Stats for external reporting; not used by retrieval logic.
	NodeCount(ctx context.Context) (int64, error)
	EdgeCount(ctx context.Context) (int64, error)
	EdgeTypeHistogram(ctx context.Context) (map[string]int64, error)

	Close(ctx context.Context) error
}
