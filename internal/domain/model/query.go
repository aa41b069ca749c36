package model

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy is returned when a caller-supplied strategy string does
// not name one of the supported retrieval strategies.
var ErrUnknownStrategy = errors.New("unknown retrieval strategy")

// QueryCategory classifies the intent of a user query.
type QueryCategory string

const (
	CategoryFactual       QueryCategory = "FACTUAL"
	CategoryComparative   QueryCategory = "COMPARATIVE"
	CategoryRelational    QueryCategory = "RELATIONAL"
	CategoryExploratory   QueryCategory = "EXPLORATORY"
	CategoryTrendAnalysis QueryCategory = "TREND_ANALYSIS"
)

// Strategy selects which retrieval engines participate in answering a query.
type Strategy string

const (
	StrategyVectorOnly Strategy = "VECTOR_ONLY"
	StrategyGraphOnly  Strategy = "GRAPH_ONLY"
	StrategyHybrid     Strategy = "HYBRID"
)

// ParseStrategy converts an untrusted strategy string (e.g. from an HTTP
// request) into a Strategy. Inside the core the type is closed; this is the
// only place an unknown value can appear.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyVectorOnly, StrategyGraphOnly, StrategyHybrid:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// QueryAnalysis is the immutable result of classifying one query.
type QueryAnalysis struct {
	Category    QueryCategory `json:"category"`
	KeyEntities []string      `json:"key_entities"`
	Strategy    Strategy      `json:"strategy"`
	Reasoning   string        `json:"reasoning"`
}

// RetrievalPolicy holds the concrete retrieval parameters derived from a
// QueryAnalysis.
type RetrievalPolicy struct {
	Strategy    Strategy `json:"strategy"`
	ResultCount int      `json:"result_count"`
	GraphDepth  int      `json:"graph_depth"`
}

// WithStrategy returns a copy of the policy with an explicitly chosen
// strategy, leaving result count and graph depth untouched.
func (p RetrievalPolicy) WithStrategy(s Strategy) RetrievalPolicy {
	p.Strategy = s
	return p
}

// RetrievalMethod tags a result with the engine that produced it. It is
// provenance only, never a ranking signal.
type RetrievalMethod string

const (
	MethodVector RetrievalMethod = "VECTOR"
	MethodGraph  RetrievalMethod = "GRAPH"
	MethodHybrid RetrievalMethod = "HYBRID"
)

// RetrievalResult is one fused hit returned to the caller. Within a returned
// list, RelevanceScore is non-increasing.
type RetrievalResult struct {
	Content        string            `json:"content"`
	SourceID       string            `json:"source_id"`
	RelevanceScore float64           `json:"relevance_score"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Method         RetrievalMethod   `json:"method"`
}

// VectorHit is a raw nearest-neighbor hit from the vector index. Distance is
// non-negative; lower means more similar.
type VectorHit struct {
	ID       string
	Content  string
	Distance float64
	Metadata map[string]string
}

// Fragment is a chunk of ingested document text addressable by an opaque id.
type Fragment struct {
	ID       string
	Content  string
	Metadata map[string]string
}
