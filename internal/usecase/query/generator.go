package query

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
)

const synthesisPrompt = `You are a research assistant helping technical teams find insights from documentation.

User Query: %s

Retrieved Context:
%s

Knowledge Graph Context:
%s

Based on the retrieved information, provide a comprehensive answer that:
1. Directly addresses the user's question
2. Synthesizes information from both vector search and graph relationships
3. Highlights important connections and relationships
4. Cites sources using [doc_id] format
5. Acknowledges if information is incomplete

Keep the answer concise but thorough. Use technical language appropriate for the audience.

Answer:`

const (
	maxContextNodes = 10
	maxContextEdges = 15
)

const apologyAnswer = "I apologize, but I encountered an error generating the answer. Please try again."

// Answer is the synthesized response plus the source ids it drew from.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// Generator synthesizes a natural-language answer from fused retrieval
// results and optional graph context.
type Generator struct {
	llm repository.LLMRouter
}

// NewGenerator creates an answer generator over the given LLM task router.
func NewGenerator(llm repository.LLMRouter) *Generator {
	return &Generator{llm: llm}
}

// Generate builds the synthesis prompt and routes it to the heavy-cognition
// completion client. Generation is fail-soft: on any backend failure the
// caller receives an apology answer rather than an error, mirroring the
// router's fail-open classification.
func (g *Generator) Generate(ctx context.Context, query string, results []model.RetrievalResult, subgraph *model.Subgraph) Answer {
	sources := make([]string, 0, len(results))
	for _, res := range results {
		sources = append(sources, res.SourceID)
	}

	if g.llm == nil {
		return Answer{Text: apologyAnswer, Sources: sources}
	}
	client := g.llm.RouteTask(repository.TaskSynthesis)
	if client == nil {
		return Answer{Text: apologyAnswer, Sources: sources}
	}

	prompt := fmt.Sprintf(synthesisPrompt, query, formatContext(results), formatGraphContext(subgraph))
	text, err := client.Complete(ctx, prompt)
	if err != nil {
		log.Printf("[Generator] Answer synthesis failed: %v", err)
		return Answer{Text: apologyAnswer, Sources: sources}
	}

	return Answer{Text: strings.TrimSpace(text), Sources: sources}
}

func formatContext(results []model.RetrievalResult) string {
	if len(results) == 0 {
		return "No documents retrieved."
	}
	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "[Document %d] (Source: %s, Relevance: %.2f)\n%s\n\n", i+1, res.SourceID, res.RelevanceScore, res.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGraphContext(sg *model.Subgraph) string {
	if sg == nil || sg.IsEmpty() {
		return "No graph context available."
	}

	nodes := sg.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	if len(nodes) > maxContextNodes {
		nodes = nodes[:maxContextNodes]
	}

	var b strings.Builder
	b.WriteString("Related Entities:\n")
	for _, n := range nodes {
		desc := n.Description
		if desc == "" {
			desc = "N/A"
		}
		fmt.Fprintf(&b, "  - %s (%s): %s\n", n.Name, n.Type, desc)
	}

	edges := sg.Edges()
	if len(edges) > maxContextEdges {
		edges = edges[:maxContextEdges]
	}
	if len(edges) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "  - %s -[%s]-> %s\n", e.Source, e.RelationType, e.Target)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
