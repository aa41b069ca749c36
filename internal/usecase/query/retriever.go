package query

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
	"github.com/docsage/docsage-api/internal/usecase/traversal"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultVectorWeight and DefaultGraphWeight sum to 1.0 by convention;
	// the graph weight is reserved for blending traversal-derived scores.
	DefaultVectorWeight = 0.6
	DefaultGraphWeight  = 0.4

	// anchorCandidates/anchorCount control the GRAPH_ONLY seeding step: a
	// small vector lookup bridges free text into the entity-keyed graph.
	anchorCandidates = 3
	anchorCount      = 2
	anchorScore      = 0.8

	contextSubgraphDepth = 2
)

// HybridRetriever executes one of the retrieval strategies against the
// vector index and the graph traversal engine and returns a single ranked,
// capped result list. Stateless; safe for concurrent use.
type HybridRetriever struct {
	vector       repository.VectorRepository
	graph        *traversal.Engine
	vectorWeight float64
	graphWeight  float64
}

// NewHybridRetriever creates a retriever with the default score weights.
func NewHybridRetriever(vector repository.VectorRepository, graph *traversal.Engine) *HybridRetriever {
	return NewWeightedHybridRetriever(vector, graph, DefaultVectorWeight, DefaultGraphWeight)
}

// NewWeightedHybridRetriever creates a retriever with explicit weights.
// Weights are expected to sum to 1.0; this is a convention, not enforced.
func NewWeightedHybridRetriever(vector repository.VectorRepository, graph *traversal.Engine, vectorWeight, graphWeight float64) *HybridRetriever {
	return &HybridRetriever{
		vector:       vector,
		graph:        graph,
		vectorWeight: vectorWeight,
		graphWeight:  graphWeight,
	}
}

// Retrieve executes the policy's strategy. The returned list is sorted by
// non-increasing relevance score and holds at most policy.ResultCount
// entries. An unrecognized strategy is a configuration error, not a
// condition to recover from.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, policy model.RetrievalPolicy) ([]model.RetrievalResult, error) {
	if policy.ResultCount < 1 {
		return nil, fmt.Errorf("retrieve: result count must be positive, got %d", policy.ResultCount)
	}

	log.Printf("[Retriever] strategy=%s n=%d depth=%d", policy.Strategy, policy.ResultCount, policy.GraphDepth)

	switch policy.Strategy {
	case model.StrategyVectorOnly:
		return r.retrieveVector(ctx, query, policy.ResultCount)
	case model.StrategyGraphOnly:
		return r.retrieveGraphAnchors(ctx, query, policy.ResultCount)
	case model.StrategyHybrid:
		return r.retrieveHybrid(ctx, query, policy.ResultCount)
	default:
		return nil, fmt.Errorf("retrieve: %w: %q", model.ErrUnknownStrategy, policy.Strategy)
	}
}

// retrieveVector maps each hit's distance d to a similarity score 1-d.
// Distances are normalized to [0,1] by the index, but scores may still fall
// below zero for very dissimilar hits; callers must not assume [0,1].
func (r *HybridRetriever) retrieveVector(ctx context.Context, query string, n int) ([]model.RetrievalResult, error) {
	hits, err := r.vector.Search(ctx, query, n, nil)
	if err != nil {
		return nil, fmt.Errorf("vector retrieval: %w", err)
	}

	results := make([]model.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.RetrievalResult{
			Content:        hit.Content,
			SourceID:       hit.ID,
			RelevanceScore: 1 - hit.Distance,
			Metadata:       hit.Metadata,
			Method:         model.MethodVector,
		})
	}
	sortByScore(results)
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// retrieveGraphAnchors seeds graph retrieval from a small vector lookup: the
// graph is keyed by entity name, not fragment id, so anchors are the only
// bridge from free text into it. The anchors carry a fixed provisional score;
// traversal-derived scoring of anchor content is a known gap left open here.
func (r *HybridRetriever) retrieveGraphAnchors(ctx context.Context, query string, n int) ([]model.RetrievalResult, error) {
	hits, err := r.vector.Search(ctx, query, anchorCandidates, nil)
	if err != nil {
		return nil, fmt.Errorf("graph anchor seeding: %w", err)
	}
	if len(hits) > anchorCount {
		hits = hits[:anchorCount]
	}

	results := make([]model.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.RetrievalResult{
			Content:        hit.Content,
			SourceID:       hit.ID,
			RelevanceScore: anchorScore,
			Metadata:       hit.Metadata,
			Method:         model.MethodGraph,
		})
	}
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// retrieveHybrid over-fetches twice the requested count to leave re-ranking
// headroom, weights the similarity scores, and truncates after sorting.
func (r *HybridRetriever) retrieveHybrid(ctx context.Context, query string, n int) ([]model.RetrievalResult, error) {
	hits, err := r.vector.Search(ctx, query, 2*n, nil)
	if err != nil {
		return nil, fmt.Errorf("hybrid retrieval: %w", err)
	}

	results := make([]model.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		similarity := 1 - hit.Distance
		results = append(results, model.RetrievalResult{
			Content:        hit.Content,
			SourceID:       hit.ID,
			RelevanceScore: similarity * r.vectorWeight,
			Metadata:       hit.Metadata,
			Method:         model.MethodHybrid,
		})
	}
	sortByScore(results)
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// ContextBundle pairs ranked documents with the subgraph around a known
// entity set.
type ContextBundle struct {
	Documents []model.RetrievalResult `json:"documents"`
	Subgraph  *model.Subgraph         `json:"subgraph"`
}

// RetrieveWithContext fetches vector documents and the entity subgraph
// concurrently; the two reads are independent and share no state, and the
// caller needs both before assembling an answer. The first failure cancels
// the sibling call so no partial result is merged into a discarded query.
func (r *HybridRetriever) RetrieveWithContext(ctx context.Context, query string, entityNames []string, resultCount int) (*ContextBundle, error) {
	if resultCount < 1 {
		return nil, fmt.Errorf("retrieve with context: result count must be positive, got %d", resultCount)
	}

	bundle := &ContextBundle{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs, err := r.retrieveVector(ctx, query, resultCount)
		if err != nil {
			return err
		}
		bundle.Documents = docs
		return nil
	})
	g.Go(func() error {
		sg, err := r.graph.Subgraph(ctx, entityNames, contextSubgraphDepth)
		if err != nil {
			return err
		}
		bundle.Subgraph = sg
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieve with context: %w", err)
	}
	return bundle, nil
}

// sortByScore orders results by non-increasing relevance score; the stable
// sort preserves the backend's original order among ties.
func sortByScore(results []model.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}
