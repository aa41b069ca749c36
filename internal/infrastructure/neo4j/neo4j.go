package neo4j

import (
	"context"
	"fmt"
	"log"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

// Store implements repository.GraphRepository using the official Neo4j Go
// driver. Entities are :Entity nodes keyed by name; every relationship is a
// RELATES_TO edge carrying its semantic type as a property, which keeps
// variable-length traversal queries to a single relationship pattern.
type Store struct {
	driver neo4j.Driver
}

// NewStore creates a new Neo4j store, verifies connectivity, and ensures the
// entity name index exists.
func NewStore(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver for %s: %w", uri, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		if closeErr := driver.Close(ctx); closeErr != nil {
			log.Printf("[Neo4j] Warning: failed to close driver after connectivity check: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to verify Neo4j connectivity at %s: %w", uri, err)
	}

	s := &Store{driver: driver}
	if err := s.ensureIndexes(ctx); err != nil {
		if closeErr := driver.Close(ctx); closeErr != nil {
			log.Printf("[Neo4j] Warning: failed to close driver after index setup: %v", closeErr)
		}
		return nil, err
	}

	log.Printf("[Neo4j] Connected to %s as %s", uri, user)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	query := `CREATE INDEX entity_name_index IF NOT EXISTS FOR (e:Entity) ON (e.name)`
	if _, err := s.run(ctx, query, nil); err != nil {
		return fmt.Errorf("failed to create entity name index: %w", err)
	}
	return nil
}

func (s *Store) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(""),
	)
}

// FindNode looks up an entity by exact name. Absence is (nil, nil), not an
// error.
func (s *Store) FindNode(ctx context.Context, name string) (*model.GraphNode, error) {
	query := `
		MATCH (e:Entity {name: $name})
		RETURN e.name AS name, coalesce(e.type, '') AS type, coalesce(e.description, '') AS description
		LIMIT 1
	`
	result, err := s.run(ctx, query, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("neo4j node lookup failed for %q: %w", name, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	node := recordToNode(result.Records[0])
	return &node, nil
}

// ExpandNeighbors walks RELATES_TO edges up to maxDepth hops out from the
// named entity. When relationFilter is non-empty, every edge on the path
// must carry one of the listed types. Results are ordered by hop distance;
// the LIMIT matches the engine's result cap so dense nodes do not flood the
// wire.
func (s *Store) ExpandNeighbors(ctx context.Context, name string, maxDepth int, relationFilter []string) ([]model.Neighbor, error) {
	typeClause := ""
	params := map[string]any{"name": name}
	if len(relationFilter) > 0 {
		typeClause = "AND all(rel IN relationships(path) WHERE rel.type IN $types)"
		params["types"] = relationFilter
	}

	query := fmt.Sprintf(`
		MATCH path = (start:Entity {name: $name})-[:RELATES_TO*1..%d]-(neighbor:Entity)
		WHERE neighbor.name <> $name %s
		WITH neighbor, min(length(path)) AS distance,
		     head(collect([rel IN relationships(path) | coalesce(rel.type, 'RELATES_TO')])) AS relation_path
		RETURN neighbor.name AS name,
		       coalesce(neighbor.type, '') AS type,
		       coalesce(neighbor.description, '') AS description,
		       distance, relation_path
		ORDER BY distance, name
		LIMIT 20
	`, maxDepth, typeClause)

	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j neighbor expansion failed for %q: %w", name, err)
	}

	neighbors := make([]model.Neighbor, 0, len(result.Records))
	for _, record := range result.Records {
		distance, _, _ := neo4j.GetRecordValue[int64](record, "distance")
		neighbors = append(neighbors, model.Neighbor{
			Node:         recordToNode(record),
			HopDistance:  int(distance),
			RelationPath: recordToStringList(record, "relation_path"),
		})
	}
	return neighbors, nil
}

// ShortestPath finds one shortest RELATES_TO path between two entities. No
// path within maxDepth hops is (nil, nil).
func (s *Store) ShortestPath(ctx context.Context, source, target string, maxDepth int) (*model.Path, error) {
	query := fmt.Sprintf(`
		MATCH (source:Entity {name: $source}), (target:Entity {name: $target})
		MATCH path = shortestPath((source)-[:RELATES_TO*..%d]-(target))
		RETURN [n IN nodes(path) | n.name] AS names,
		       [rel IN relationships(path) | coalesce(rel.type, 'RELATES_TO')] AS relations
		LIMIT 1
	`, maxDepth)

	result, err := s.run(ctx, query, map[string]any{"source": source, "target": target})
	if err != nil {
		return nil, fmt.Errorf("neo4j shortest path failed for %q->%q: %w", source, target, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	record := result.Records[0]
	return &model.Path{
		Nodes:     recordToStringList(record, "names"),
		Relations: recordToStringList(record, "relations"),
	}, nil
}

// MaterializeSubgraph returns the raw node and edge sets within maxDepth hops
// of the seed names. The two queries run separately so an empty edge set
// cannot suppress the node rows; callers own dedup and dangling-edge
// filtering.
func (s *Store) MaterializeSubgraph(ctx context.Context, names []string, maxDepth int) ([]model.GraphNode, []model.GraphEdge, error) {
	params := map[string]any{"names": names}

	nodeQuery := fmt.Sprintf(`
		MATCH (seed:Entity) WHERE seed.name IN $names
		OPTIONAL MATCH (seed)-[:RELATES_TO*1..%d]-(nearby:Entity)
		WITH collect(DISTINCT seed) + collect(DISTINCT nearby) AS all_nodes
		UNWIND all_nodes AS node
		WITH DISTINCT node WHERE node IS NOT NULL
		RETURN node.name AS name, coalesce(node.type, '') AS type, coalesce(node.description, '') AS description
	`, maxDepth)

	nodeResult, err := s.run(ctx, nodeQuery, params)
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j subgraph node query failed: %w", err)
	}
	nodes := make([]model.GraphNode, 0, len(nodeResult.Records))
	for _, record := range nodeResult.Records {
		nodes = append(nodes, recordToNode(record))
	}

	edgeQuery := fmt.Sprintf(`
		MATCH (seed:Entity) WHERE seed.name IN $names
		MATCH path = (seed)-[:RELATES_TO*1..%d]-(:Entity)
		UNWIND relationships(path) AS rel
		WITH DISTINCT rel
		RETURN startNode(rel).name AS source, endNode(rel).name AS target,
		       coalesce(rel.type, 'RELATES_TO') AS relation_type,
		       coalesce(rel.context, '') AS context
	`, maxDepth)

	edgeResult, err := s.run(ctx, edgeQuery, params)
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j subgraph edge query failed: %w", err)
	}
	edges := make([]model.GraphEdge, 0, len(edgeResult.Records))
	for _, record := range edgeResult.Records {
		source, _, _ := neo4j.GetRecordValue[string](record, "source")
		target, _, _ := neo4j.GetRecordValue[string](record, "target")
		relType, _, _ := neo4j.GetRecordValue[string](record, "relation_type")
		context, _, _ := neo4j.GetRecordValue[string](record, "context")
		edges = append(edges, model.GraphEdge{Source: source, Target: target, RelationType: relType, Context: context})
	}

	return nodes, edges, nil
}

// InsertEntities merges entities by name so repeated ingestion enriches
// instead of duplicating. Descriptions only overwrite when non-empty.
func (s *Store) InsertEntities(ctx context.Context, docID string, entities []model.GraphNode) error {
	if len(entities) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(entities))
	for _, ent := range entities {
		params = append(params, map[string]any{
			"name":        ent.Name,
			"type":        ent.Type,
			"description": ent.Description,
		})
	}

	query := `
		UNWIND $entities AS ent
		MERGE (e:Entity {name: ent.name})
		SET e.type = CASE WHEN ent.type <> '' THEN ent.type ELSE e.type END,
		    e.description = CASE WHEN ent.description <> '' THEN ent.description ELSE e.description END,
		    e.doc_id = $doc_id
	`
	if _, err := s.run(ctx, query, map[string]any{"entities": params, "doc_id": docID}); err != nil {
		return fmt.Errorf("neo4j entity insertion failed for doc %s: %w", docID, err)
	}

	log.Printf("[Neo4j] Merged %d entities for doc %s", len(entities), docID)
	return nil
}

// InsertRelations merges RELATES_TO edges, creating endpoint entities when
// extraction produced a relation whose endpoints were not listed.
func (s *Store) InsertRelations(ctx context.Context, docID string, relations []model.GraphEdge) error {
	if len(relations) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		params = append(params, map[string]any{
			"source":  rel.Source,
			"target":  rel.Target,
			"type":    rel.RelationType,
			"context": rel.Context,
		})
	}

	query := `
		UNWIND $relations AS rel
		MERGE (s:Entity {name: rel.source})
		MERGE (t:Entity {name: rel.target})
		MERGE (s)-[r:RELATES_TO {type: rel.type}]->(t)
		SET r.context = CASE WHEN rel.context <> '' THEN rel.context ELSE r.context END,
		    r.doc_id = $doc_id
	`
	if _, err := s.run(ctx, query, map[string]any{"relations": params, "doc_id": docID}); err != nil {
		return fmt.Errorf("neo4j relation insertion failed for doc %s: %w", docID, err)
	}

	log.Printf("[Neo4j] Merged %d relations for doc %s", len(relations), docID)
	return nil
}

// NodeCount returns the number of entities in the graph.
func (s *Store) NodeCount(ctx context.Context) (int64, error) {
	result, err := s.run(ctx, `MATCH (e:Entity) RETURN count(e) AS cnt`, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j node count failed: %w", err)
	}
	return singleCount(result)
}

// EdgeCount returns the number of relationships in the graph.
func (s *Store) EdgeCount(ctx context.Context) (int64, error) {
	result, err := s.run(ctx, `MATCH ()-[r:RELATES_TO]->() RETURN count(r) AS cnt`, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j edge count failed: %w", err)
	}
	return singleCount(result)
}

// EdgeTypeHistogram returns relationship counts grouped by semantic type.
func (s *Store) EdgeTypeHistogram(ctx context.Context) (map[string]int64, error) {
	query := `
		MATCH ()-[r:RELATES_TO]->()
		RETURN coalesce(r.type, 'RELATES_TO') AS type, count(r) AS cnt
		ORDER BY cnt DESC
	`
	result, err := s.run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j edge histogram failed: %w", err)
	}

	histogram := make(map[string]int64, len(result.Records))
	for _, record := range result.Records {
		relType, _, _ := neo4j.GetRecordValue[string](record, "type")
		cnt, _, _ := neo4j.GetRecordValue[int64](record, "cnt")
		histogram[relType] = cnt
	}
	return histogram, nil
}

// Close closes the underlying Neo4j driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func recordToNode(record *neo4j.Record) model.GraphNode {
	name, _, _ := neo4j.GetRecordValue[string](record, "name")
	nodeType, _, _ := neo4j.GetRecordValue[string](record, "type")
	description, _, _ := neo4j.GetRecordValue[string](record, "description")
	return model.GraphNode{Name: name, Type: nodeType, Description: description}
}

func recordToStringList(record *neo4j.Record, key string) []string {
	raw, ok := record.Get(key)
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func singleCount(result *neo4j.EagerResult) (int64, error) {
	if len(result.Records) == 0 {
		return 0, nil
	}
	cnt, _, err := neo4j.GetRecordValue[int64](result.Records[0], "cnt")
	if err != nil {
		return 0, fmt.Errorf("neo4j result parse failed: %w", err)
	}
	return cnt, nil
}
