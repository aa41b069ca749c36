package traversal

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
)

// memoryGraph is an in-memory GraphRepository backed by an undirected BFS
// over directed edges, with lexicographic neighbor ordering so results are
// deterministic.
type memoryGraph struct {
	nodes map[string]model.GraphNode
	edges []model.GraphEdge
}

func newMemoryGraph(nodes []model.GraphNode, edges []model.GraphEdge) *memoryGraph {
	g := &memoryGraph{nodes: make(map[string]model.GraphNode)}
	for _, n := range nodes {
		g.nodes[n.Name] = n
	}
	g.edges = edges
	return g
}

type hop struct {
	to       string
	relation string
}

func (g *memoryGraph) adjacency(relationFilter []string) map[string][]hop {
	allowed := make(map[string]bool, len(relationFilter))
	for _, r := range relationFilter {
		allowed[r] = true
	}
	adj := make(map[string][]hop)
	for _, e := range g.edges {
		if len(relationFilter) > 0 && !allowed[e.RelationType] {
			continue
		}
		adj[e.Source] = append(adj[e.Source], hop{to: e.Target, relation: e.RelationType})
		adj[e.Target] = append(adj[e.Target], hop{to: e.Source, relation: e.RelationType})
	}
	for name := range adj {
		sort.Slice(adj[name], func(i, j int) bool { return adj[name][i].to < adj[name][j].to })
	}
	return adj
}

func (g *memoryGraph) FindNode(ctx context.Context, name string) (*model.GraphNode, error) {
	if n, ok := g.nodes[name]; ok {
		return &n, nil
	}
	return nil, nil
}

func (g *memoryGraph) ExpandNeighbors(ctx context.Context, name string, maxDepth int, relationFilter []string) ([]model.Neighbor, error) {
	adj := g.adjacency(relationFilter)
	type state struct {
		name  string
		depth int
		path  []string
	}
	visited := map[string]bool{name: true}
	queue := []state{{name: name, depth: 0}}
	var out []model.Neighbor
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == maxDepth {
			continue
		}
		for _, h := range adj[cur.name] {
			if visited[h.to] {
				continue
			}
			visited[h.to] = true
			path := append(append([]string{}, cur.path...), h.relation)
			out = append(out, model.Neighbor{
				Node:         g.nodes[h.to],
				HopDistance:  cur.depth + 1,
				RelationPath: path,
			})
			queue = append(queue, state{name: h.to, depth: cur.depth + 1, path: path})
		}
	}
	return out, nil
}

func (g *memoryGraph) ShortestPath(ctx context.Context, source, target string, maxDepth int) (*model.Path, error) {
	if _, ok := g.nodes[source]; !ok {
		return nil, nil
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, nil
	}
	adj := g.adjacency(nil)
	type state struct {
		name      string
		nodes     []string
		relations []string
	}
	visited := map[string]bool{source: true}
	queue := []state{{name: source, nodes: []string{source}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.relations) == maxDepth {
			continue
		}
		for _, h := range adj[cur.name] {
			if visited[h.to] {
				continue
			}
			next := state{
				name:      h.to,
				nodes:     append(append([]string{}, cur.nodes...), h.to),
				relations: append(append([]string{}, cur.relations...), h.relation),
			}
			if h.to == target {
				return &model.Path{Nodes: next.nodes, Relations: next.relations}, nil
			}
			visited[h.to] = true
			queue = append(queue, next)
		}
	}
	return nil, nil
}

func (g *memoryGraph) MaterializeSubgraph(ctx context.Context, names []string, maxDepth int) ([]model.GraphNode, []model.GraphEdge, error) {
	inUnion := make(map[string]bool)
	for _, name := range names {
		if _, ok := g.nodes[name]; !ok {
			continue
		}
		inUnion[name] = true
		neighbors, err := g.ExpandNeighbors(ctx, name, maxDepth, nil)
		if err != nil {
			return nil, nil, err
		}
		for _, n := range neighbors {
			inUnion[n.Node.Name] = true
		}
	}
	var nodes []model.GraphNode
	for name := range inUnion {
		nodes = append(nodes, g.nodes[name])
	}
	// Return every edge touching the union, including dangling ones, to
	// exercise the engine's endpoint filtering.
	var edges []model.GraphEdge
	for _, e := range g.edges {
		if inUnion[e.Source] || inUnion[e.Target] {
			edges = append(edges, e)
		}
	}
	return nodes, edges, nil
}

func (g *memoryGraph) InsertEntities(ctx context.Context, docID string, entities []model.GraphNode) error {
	return nil
}

func (g *memoryGraph) InsertRelations(ctx context.Context, docID string, relations []model.GraphEdge) error {
	return nil
}

func (g *memoryGraph) NodeCount(ctx context.Context) (int64, error) { return int64(len(g.nodes)), nil }
func (g *memoryGraph) EdgeCount(ctx context.Context) (int64, error) { return int64(len(g.edges)), nil }
func (g *memoryGraph) EdgeTypeHistogram(ctx context.Context) (map[string]int64, error) {
	hist := make(map[string]int64)
	for _, e := range g.edges {
		hist[e.RelationType]++
	}
	return hist, nil
}
func (g *memoryGraph) Close(ctx context.Context) error { return nil }

func researchGraph() *memoryGraph {
	return newMemoryGraph(
		[]model.GraphNode{
			{Name: "Transformer", Type: "CONCEPT", Description: "Attention-based architecture"},
			{Name: "GPT", Type: "TECHNOLOGY", Description: "Generative pretrained transformer"},
			{Name: "BERT", Type: "TECHNOLOGY", Description: "Bidirectional encoder"},
			{Name: "Google", Type: "ORGANIZATION", Description: "Developed BERT"},
			{Name: "OpenAI", Type: "ORGANIZATION", Description: "Developed GPT"},
		},
		[]model.GraphEdge{
			{Source: "Transformer", Target: "GPT", RelationType: "INFLUENCES"},
			{Source: "Transformer", Target: "BERT", RelationType: "INFLUENCES"},
			{Source: "Google", Target: "BERT", RelationType: "DEVELOPED"},
			{Source: "OpenAI", Target: "GPT", RelationType: "DEVELOPED"},
		},
	)
}

func TestExpand_OrderedByHopDistance(t *testing.T) {
	engine := NewEngine(researchGraph())

	neighbors, err := engine.Expand(context.Background(), "Google", 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors within depth 2, got %d", len(neighbors))
	}
	for i := 1; i < len(neighbors); i++ {
		if neighbors[i].HopDistance < neighbors[i-1].HopDistance {
			t.Errorf("neighbors not ordered by hop distance: %v", neighbors)
		}
	}
	if neighbors[0].Node.Name != "BERT" || neighbors[0].HopDistance != 1 {
		t.Errorf("expected BERT at hop 1, got %+v", neighbors[0])
	}
	if neighbors[1].Node.Name != "Transformer" || neighbors[1].HopDistance != 2 {
		t.Errorf("expected Transformer at hop 2, got %+v", neighbors[1])
	}
	if len(neighbors[1].RelationPath) != 2 {
		t.Errorf("expected 2 relation labels at hop 2, got %v", neighbors[1].RelationPath)
	}
}

func TestExpand_UnknownSeed(t *testing.T) {
	engine := NewEngine(researchGraph())

	_, err := engine.Expand(context.Background(), "Nonexistent", 2, nil)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpand_CapsResultSet(t *testing.T) {
	nodes := []model.GraphNode{{Name: "hub"}}
	var edges []model.GraphEdge
	for i := 0; i < 30; i++ {
		name := string(rune('a'+i/26)) + string(rune('a'+i%26))
		nodes = append(nodes, model.GraphNode{Name: name})
		edges = append(edges, model.GraphEdge{Source: "hub", Target: name, RelationType: "RELATED_TO"})
	}
	engine := NewEngine(newMemoryGraph(nodes, edges))

	neighbors, err := engine.Expand(context.Background(), "hub", 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(neighbors) != maxExpandResults {
		t.Errorf("expected result set capped at %d, got %d", maxExpandResults, len(neighbors))
	}
}

func TestExpand_RelationFilter(t *testing.T) {
	engine := NewEngine(researchGraph())

	neighbors, err := engine.Expand(context.Background(), "Transformer", 2, []string{"INFLUENCES"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range neighbors {
		for _, rel := range n.RelationPath {
			if rel != "INFLUENCES" {
				t.Errorf("relation filter leaked %q into path of %s", rel, n.Node.Name)
			}
		}
	}
}

func TestShortestPath_Endpoints(t *testing.T) {
	engine := NewEngine(researchGraph())

	path, err := engine.ShortestPath(context.Background(), "Google", "OpenAI", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == nil {
		t.Fatal("expected a path, got nil")
	}
	if path.Nodes[0] != "Google" || path.Nodes[len(path.Nodes)-1] != "OpenAI" {
		t.Errorf("path endpoints wrong: %v", path.Nodes)
	}
	if path.Hops() > 4 {
		t.Errorf("path exceeds depth bound: %d hops", path.Hops())
	}
	if len(path.Relations) != len(path.Nodes)-1 {
		t.Errorf("relations/nodes mismatch: %v / %v", path.Relations, path.Nodes)
	}
}

func TestShortestPath_SameNode(t *testing.T) {
	engine := NewEngine(researchGraph())

	path, err := engine.ShortestPath(context.Background(), "GPT", "GPT", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == nil || path.Hops() != 0 || len(path.Nodes) != 1 || path.Nodes[0] != "GPT" {
		t.Errorf("expected zero-length path at GPT, got %+v", path)
	}
}

func TestShortestPath_Disconnected(t *testing.T) {
	g := researchGraph()
	g.nodes["Island"] = model.GraphNode{Name: "Island"}
	engine := NewEngine(g)

	path, err := engine.ShortestPath(context.Background(), "Google", "Island", 4)
	if err != nil {
		t.Fatalf("no path must not be an error, got %v", err)
	}
	if path != nil {
		t.Errorf("expected nil path for disconnected nodes, got %+v", path)
	}
}

func TestShortestPath_AbsentNames(t *testing.T) {
	engine := NewEngine(researchGraph())

	path, err := engine.ShortestPath(context.Background(), "Google", "Nope", 4)
	if err != nil || path != nil {
		t.Errorf("absent target: expected (nil, nil), got (%+v, %v)", path, err)
	}
	path, err = engine.ShortestPath(context.Background(), "Nope", "Nope", 4)
	if err != nil || path != nil {
		t.Errorf("absent source==target: expected (nil, nil), got (%+v, %v)", path, err)
	}
}

func TestShortestPath_DepthBound(t *testing.T) {
	engine := NewEngine(researchGraph())

	// Google-BERT-Transformer-GPT-OpenAI is 4 hops; a bound of 2 cuts it off.
	path, err := engine.ShortestPath(context.Background(), "Google", "OpenAI", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != nil {
		t.Errorf("expected nil path within depth 2, got %+v", path)
	}
}

func TestSubgraph_NoDanglingEdges(t *testing.T) {
	engine := NewEngine(researchGraph())

	sg, err := engine.Subgraph(context.Background(), []string{"Google"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range sg.Edges() {
		if !sg.HasNode(e.Source) || !sg.HasNode(e.Target) {
			t.Errorf("dangling edge %+v in subgraph", e)
		}
	}
	if !sg.HasNode("Google") || !sg.HasNode("BERT") {
		t.Errorf("depth-1 closure from Google should hold Google and BERT, got %v", sg.Nodes())
	}
	if sg.HasNode("GPT") {
		t.Error("GPT is 3 hops from Google and must not appear at depth 1")
	}
}

func TestSubgraph_EmptyAndUnknownSeeds(t *testing.T) {
	engine := NewEngine(researchGraph())
	ctx := context.Background()

	sg, err := engine.Subgraph(ctx, nil, 2)
	if err != nil {
		t.Fatalf("empty seeds: unexpected error: %v", err)
	}
	if !sg.IsEmpty() {
		t.Errorf("empty seeds: expected empty subgraph, got %d nodes", sg.NodeCount())
	}

	sg, err = engine.Subgraph(ctx, []string{"NotInGraph"}, 2)
	if err != nil {
		t.Fatalf("unknown seed: unexpected error: %v", err)
	}
	if !sg.IsEmpty() {
		t.Errorf("unknown seed: expected empty subgraph, got %d nodes", sg.NodeCount())
	}
}

func TestSubgraph_MixedSeeds(t *testing.T) {
	engine := NewEngine(researchGraph())

	sg, err := engine.Subgraph(context.Background(), []string{"NotInGraph", "Google"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sg.IsEmpty() {
		t.Fatal("known seed must still expand when another seed is unknown")
	}
	if !sg.HasNode("Google") {
		t.Error("expected Google in subgraph")
	}
}

// Verifies the "both endpoints in union" rule on the A→C, B→D, C→D graph.
func TestSubgraph_EndpointUnionRule(t *testing.T) {
	g := newMemoryGraph(
		[]model.GraphNode{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}},
		[]model.GraphEdge{
			{Source: "A", Target: "C", RelationType: "RELATED_TO"},
			{Source: "B", Target: "D", RelationType: "RELATED_TO"},
			{Source: "C", Target: "D", RelationType: "RELATED_TO"},
		},
	)
	engine := NewEngine(g)

	sg, err := engine.Subgraph(context.Background(), []string{"A", "B"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sg.NodeCount() != 4 {
		t.Errorf("expected nodes {A,B,C,D}, got %v", sg.Nodes())
	}
	// C and D are both within the depth-1 closure (via A and B), so C→D is in.
	if sg.EdgeCount() != 3 {
		t.Errorf("expected edges {A→C, B→D, C→D}, got %v", sg.Edges())
	}
}

func TestSubgraph_DeduplicatesSharedNeighborhood(t *testing.T) {
	g := newMemoryGraph(
		[]model.GraphNode{{Name: "X"}, {Name: "Y"}, {Name: "Z"}},
		[]model.GraphEdge{
			{Source: "X", Target: "Z", RelationType: "USES"},
			{Source: "Y", Target: "Z", RelationType: "USES"},
		},
	)
	engine := NewEngine(g)

	// Both seeds reach Z; the union must carry Z and each edge exactly once.
	sg, err := engine.Subgraph(context.Background(), []string{"X", "Y", "X"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sg.NodeCount() != 3 {
		t.Errorf("expected 3 distinct nodes, got %d", sg.NodeCount())
	}
	if sg.EdgeCount() != 2 {
		t.Errorf("expected 2 distinct edges, got %d", sg.EdgeCount())
	}
}

func TestStats(t *testing.T) {
	g := newMemoryGraph(
		[]model.GraphNode{{Name: "A"}, {Name: "B"}, {Name: "C"}},
		[]model.GraphEdge{
			{Source: "A", Target: "B", RelationType: "USES"},
			{Source: "B", Target: "C", RelationType: "PART_OF"},
		},
	)
	engine := NewEngine(g)

	stats, err := engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.NodeCount != 3 || stats.EdgeCount != 2 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.EdgeTypes["USES"] != 1 || stats.EdgeTypes["PART_OF"] != 1 {
		t.Errorf("unexpected histogram: %v", stats.EdgeTypes)
	}
}
