package traversal

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
)

// maxExpandResults caps one expansion's result set to bound response size.
// Callers needing more must re-query with a higher depth or other seeds.
const maxExpandResults = 20

// Engine performs bounded neighborhood exploration and subgraph assembly
// over the persisted entity graph. It is stateless and safe for concurrent
// use as long as the underlying GraphRepository is.
type Engine struct {
	graph repository.GraphRepository
}

// NewEngine creates a traversal engine over the given graph store.
func NewEngine(graph repository.GraphRepository) *Engine {
	return &Engine{graph: graph}
}

// Expand returns every node reachable from seed within maxDepth hops,
// ordered by increasing hop distance with first-seen order preserved among
// ties. Returns repository.ErrNotFound when the seed is absent.
func (e *Engine) Expand(ctx context.Context, seed string, maxDepth int, relationFilter []string) ([]model.Neighbor, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	node, err := e.graph.FindNode(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", seed, err)
	}
	if node == nil {
		return nil, fmt.Errorf("expand %q: %w", seed, repository.ErrNotFound)
	}

	neighbors, err := e.graph.ExpandNeighbors(ctx, seed, maxDepth, relationFilter)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", seed, err)
	}

	// The store is expected to return breadth-first order already; the
	// stable sort keeps discovery order among equal hop distances even when
	// it does not.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].HopDistance < neighbors[j].HopDistance
	})

	if len(neighbors) > maxExpandResults {
		neighbors = neighbors[:maxExpandResults]
	}
	return neighbors, nil
}

// ShortestPath returns a fewest-hop path between source and target within
// maxDepth, or (nil, nil) when no such path exists or either name is absent.
// When source == target the zero-length path is returned, provided the node
// exists.
func (e *Engine) ShortestPath(ctx context.Context, source, target string, maxDepth int) (*model.Path, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	if source == target {
		node, err := e.graph.FindNode(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("shortest path %q->%q: %w", source, target, err)
		}
		if node == nil {
			return nil, nil
		}
		return &model.Path{Nodes: []string{source}}, nil
	}

	path, err := e.graph.ShortestPath(ctx, source, target, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("shortest path %q->%q: %w", source, target, err)
	}
	if path == nil || path.Hops() > maxDepth {
		return nil, nil
	}
	return path, nil
}

// GraphStats summarizes the persisted graph.
type GraphStats struct {
	NodeCount int64
	EdgeCount int64
	EdgeTypes map[string]int64
}

// Stats reports node and edge totals plus the per-type edge histogram.
func (e *Engine) Stats(ctx context.Context) (*GraphStats, error) {
	nodeCount, err := e.graph.NodeCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	edgeCount, err := e.graph.EdgeCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	histogram, err := e.graph.EdgeTypeHistogram(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	return &GraphStats{NodeCount: nodeCount, EdgeCount: edgeCount, EdgeTypes: histogram}, nil
}

// Subgraph expands every seed present in the graph up to maxDepth and unions
// the visited nodes and edges. Seeds absent from the graph are skipped:
// they typically come from an LLM-extracted entity list whose surface forms
// may not match the graph's canonical names. An empty or fully-unknown seed
// set yields an empty subgraph, never an error. Every edge in the result has
// both endpoints in the result's node set.
func (e *Engine) Subgraph(ctx context.Context, seeds []string, maxDepth int) (*model.Subgraph, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	sg := model.NewSubgraph()

	var present []string
	seen := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		if seed == "" {
			continue
		}
		if _, dup := seen[seed]; dup {
			continue
		}
		seen[seed] = struct{}{}

		node, err := e.graph.FindNode(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("subgraph seed %q: %w", seed, err)
		}
		if node == nil {
			log.Printf("[Traversal] Seed %q not in graph, skipping", seed)
			continue
		}
		present = append(present, seed)
		sg.AddNode(*node)
	}

	if len(present) == 0 {
		return sg, nil
	}

	nodes, edges, err := e.graph.MaterializeSubgraph(ctx, present, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("subgraph: %w", err)
	}

	for _, n := range nodes {
		sg.AddNode(n)
	}
	dropped := 0
	for _, edge := range edges {
		if !sg.AddEdge(edge) {
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("[Traversal] Dropped %d duplicate or dangling edges from subgraph", dropped)
	}
	return sg, nil
}
