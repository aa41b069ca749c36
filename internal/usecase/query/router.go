package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
)

const classificationPrompt = `Analyze the user's query and determine the best retrieval strategy.

User Query: %s

Classify this query into one of these categories:

1. FACTUAL: Simple fact lookup, can be answered with vector search
   Example: "What is a transformer model?"

2. COMPARATIVE: Comparing multiple concepts, requires multi-hop reasoning
   Example: "How does GPT differ from BERT?"

3. RELATIONAL: Understanding connections between entities, needs graph traversal
   Example: "What papers influenced the development of attention mechanisms?"

4. EXPLORATORY: Broad investigation, needs hybrid approach
   Example: "What are the recent advances in language models?"

5. TREND_ANALYSIS: Identifying patterns over time or across domains
   Example: "How has transfer learning evolved in the last 5 years?"

Respond ONLY with a JSON object:
{
  "category": "FACTUAL|COMPARATIVE|RELATIONAL|EXPLORATORY|TREND_ANALYSIS",
  "key_entities": ["..."],
  "strategy": "VECTOR_ONLY|GRAPH_ONLY|HYBRID",
  "reasoning": "..."
}`

// Router turns free text into a retrieval plan: an LLM-backed classification
// followed by a deterministic policy lookup. It is stateless and safe for
// concurrent use.
type Router struct {
	llm repository.LLMRouter
}

// NewRouter creates a query router over the given LLM task router.
func NewRouter(llm repository.LLMRouter) *Router {
	return &Router{llm: llm}
}

// Classify analyzes a query and recommends a retrieval strategy. It never
// fails: any completion or parse error is swallowed behind a fail-open
// fallback analysis so every query receives a usable plan.
func (r *Router) Classify(ctx context.Context, query string) model.QueryAnalysis {
	analysis, err := r.classify(ctx, query)
	if err != nil {
		log.Printf("[Router] Classification failed: %v. Falling back to hybrid.", err)
		return fallbackAnalysis(err)
	}
	log.Printf("[Router] Query classified: category=%s strategy=%s entities=%v",
		analysis.Category, analysis.Strategy, analysis.KeyEntities)
	return analysis
}

// classify is the fallible half of Classify; keeping it separate makes the
// fallback a visible, testable code path instead of an implicit catch-all.
func (r *Router) classify(ctx context.Context, query string) (model.QueryAnalysis, error) {
	if r.llm == nil {
		return model.QueryAnalysis{}, fmt.Errorf("no llm router configured")
	}
	client := r.llm.RouteTask(repository.TaskClassification)
	if client == nil {
		return model.QueryAnalysis{}, fmt.Errorf("no completion client for classification")
	}

	resp, err := client.Complete(ctx, fmt.Sprintf(classificationPrompt, query))
	if err != nil {
		return model.QueryAnalysis{}, fmt.Errorf("completion: %w", err)
	}

	var parsed struct {
		Category    string   `json:"category"`
		KeyEntities []string `json:"key_entities"`
		Strategy    string   `json:"strategy"`
		Reasoning   string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &parsed); err != nil {
		return model.QueryAnalysis{}, fmt.Errorf("parse classification response: %w", err)
	}
	if parsed.Category == "" {
		return model.QueryAnalysis{}, fmt.Errorf("classification response missing category")
	}
	strategy, err := model.ParseStrategy(parsed.Strategy)
	if err != nil {
		return model.QueryAnalysis{}, fmt.Errorf("classification response: %w", err)
	}

	return model.QueryAnalysis{
		Category:    model.QueryCategory(parsed.Category),
		KeyEntities: parsed.KeyEntities,
		Strategy:    strategy,
		Reasoning:   parsed.Reasoning,
	}, nil
}

// fallbackAnalysis is the single designated fallback constructor applied on
// the error branch of classification.
func fallbackAnalysis(cause error) model.QueryAnalysis {
	return model.QueryAnalysis{
		Category:    model.CategoryExploratory,
		KeyEntities: []string{},
		Strategy:    model.StrategyHybrid,
		Reasoning:   fmt.Sprintf("fallback to hybrid strategy after classification error: %v", cause),
	}
}

// PolicyFor maps a query analysis to concrete retrieval parameters. It is a
// pure function of the category; callers may still override the strategy
// explicitly via RetrievalPolicy.WithStrategy.
func PolicyFor(analysis model.QueryAnalysis) model.RetrievalPolicy {
	switch analysis.Category {
	case model.CategoryFactual:
		// Single-fact lookups want few, precise vector hits; the depth is
		// carried for symmetry but unused under VECTOR_ONLY.
		return model.RetrievalPolicy{Strategy: model.StrategyVectorOnly, ResultCount: 3, GraphDepth: 2}
	case model.CategoryComparative:
		return model.RetrievalPolicy{Strategy: model.StrategyHybrid, ResultCount: 8, GraphDepth: 2}
	case model.CategoryRelational:
		return model.RetrievalPolicy{Strategy: model.StrategyHybrid, ResultCount: 5, GraphDepth: 3}
	case model.CategoryExploratory:
		return model.RetrievalPolicy{Strategy: model.StrategyHybrid, ResultCount: 10, GraphDepth: 2}
	case model.CategoryTrendAnalysis:
		return model.RetrievalPolicy{Strategy: model.StrategyHybrid, ResultCount: 15, GraphDepth: 3}
	default:
		return model.RetrievalPolicy{Strategy: model.StrategyHybrid, ResultCount: 5, GraphDepth: 2}
	}
}

// stripCodeFence removes a surrounding markdown code fence, if any, so the
// JSON body can be parsed regardless of how the model wrapped it.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
