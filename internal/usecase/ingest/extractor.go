package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
)

const extractionPrompt = `Extract key entities and their relationships from the following text.
Respond ONLY with a JSON object containing "entities" and "relations" arrays.
Entity: { "name": "...", "type": "...", "description": "..." }
Relation: { "source": "...", "target": "...", "relation_type": "...", "context": "..." }

Entity types: CONCEPT, PERSON, ORGANIZATION, TECHNOLOGY, PAPER, OTHER.
Relation types: short UPPER_SNAKE_CASE verbs such as BUILDS_ON, INFLUENCED, PART_OF.

Text: %s`

// GraphExtractor pulls entities and relations out of fragment text via the
// light-cognition completion client.
type GraphExtractor struct {
	llm repository.LLMRouter
}

// NewGraphExtractor creates a new extractor.
func NewGraphExtractor(llm repository.LLMRouter) *GraphExtractor {
	return &GraphExtractor{llm: llm}
}

// Extract finds entities and their connections in a fragment. A malformed
// LLM response yields empty results rather than failing the whole ingestion;
// a transport error is still returned so the caller can retry.
func (e *GraphExtractor) Extract(ctx context.Context, text string) ([]model.GraphNode, []model.GraphEdge, error) {
	if e == nil || e.llm == nil {
		return nil, nil, nil
	}
	client := e.llm.RouteTask(repository.TaskExtraction)
	if client == nil {
		return nil, nil, nil
	}

	resp, err := client.Complete(ctx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return nil, nil, fmt.Errorf("extraction failed: %w", err)
	}

	// Local models tend to wrap the JSON in backticks.
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var parsed struct {
		Entities []struct {
			Name        string `json:"name"`
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"entities"`
		Relations []struct {
			Source       string `json:"source"`
			Target       string `json:"target"`
			RelationType string `json:"relation_type"`
			Context      string `json:"context"`
		} `json:"relations"`
	}
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		log.Printf("[Extractor] Failed to parse LLM JSON: %v. Raw: %s", err, resp)
		return nil, nil, nil
	}

	var nodes []model.GraphNode
	for _, ent := range parsed.Entities {
		if ent.Name == "" {
			continue
		}
		nodes = append(nodes, model.GraphNode{Name: ent.Name, Type: ent.Type, Description: ent.Description})
	}
	var edges []model.GraphEdge
	for _, rel := range parsed.Relations {
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		relType := rel.RelationType
		if relType == "" {
			relType = "RELATES_TO"
		}
		edges = append(edges, model.GraphEdge{Source: rel.Source, Target: rel.Target, RelationType: relType, Context: rel.Context})
	}
	return nodes, edges, nil
}

// DedupeEntities collapses entities sharing a case-insensitive name, keeping
// the longest description seen for each.
func DedupeEntities(entities []model.GraphNode) []model.GraphNode {
	byName := make(map[string]int, len(entities))
	var out []model.GraphNode
	for _, ent := range entities {
		key := strings.ToLower(ent.Name)
		if idx, ok := byName[key]; ok {
			if len(ent.Description) > len(out[idx].Description) {
				out[idx].Description = ent.Description
			}
			if out[idx].Type == "" {
				out[idx].Type = ent.Type
			}
			continue
		}
		byName[key] = len(out)
		out = append(out, ent)
	}
	return out
}
