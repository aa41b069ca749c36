package model

import (
	"encoding/json"
	"sort"
)

// GraphNode is an entity in the knowledge graph. Names are the primary key;
// inserting two nodes with the same name merges them.
type GraphNode struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// GraphEdge is a directed relationship between two named nodes. Traversal
// treats it as undirected; RelationType preserves the original direction's
// semantics for display.
type GraphEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	RelationType string `json:"relation_type"`
	Context      string `json:"context,omitempty"`
}

// key identifies an edge for deduplication. Context is deliberately excluded.
func (e GraphEdge) key() string {
	return e.Source + "\x00" + e.Target + "\x00" + e.RelationType
}

// Neighbor is one node discovered during bounded expansion from a seed.
type Neighbor struct {
	Node         GraphNode `json:"node"`
	HopDistance  int       `json:"hop_distance"`
	RelationPath []string  `json:"relation_path"`
}

// Path is an alternating sequence of node names and relation-type labels.
// len(Relations) == len(Nodes)-1; a single-node path has zero hops.
type Path struct {
	Nodes     []string `json:"nodes"`
	Relations []string `json:"relations"`
}

// Hops returns the number of edges in the path.
func (p *Path) Hops() int {
	return len(p.Relations)
}

// Subgraph is a set of nodes keyed by name plus deduplicated edges. Every
// edge's endpoints are guaranteed to be present in the node set.
type Subgraph struct {
	nodes    map[string]GraphNode
	edges    []GraphEdge
	edgeSeen map[string]struct{}
}

// NewSubgraph returns an empty subgraph.
func NewSubgraph() *Subgraph {
	return &Subgraph{
		nodes:    make(map[string]GraphNode),
		edgeSeen: make(map[string]struct{}),
	}
}

// AddNode inserts a node, merging with any existing node of the same name.
// A later node with an empty description does not erase an earlier one.
func (s *Subgraph) AddNode(n GraphNode) {
	if n.Name == "" {
		return
	}
	if existing, ok := s.nodes[n.Name]; ok {
		if n.Type == "" {
			n.Type = existing.Type
		}
		if n.Description == "" {
			n.Description = existing.Description
		}
	}
	s.nodes[n.Name] = n
}

// AddEdge inserts an edge if both endpoints are already present and the
// (source, target, relationType) triple has not been seen. Returns whether
// the edge was kept; dangling edges are dropped, never stored.
func (s *Subgraph) AddEdge(e GraphEdge) bool {
	if !s.HasNode(e.Source) || !s.HasNode(e.Target) {
		return false
	}
	k := e.key()
	if _, dup := s.edgeSeen[k]; dup {
		return false
	}
	s.edgeSeen[k] = struct{}{}
	s.edges = append(s.edges, e)
	return true
}

// HasNode reports whether a node with the given name is present.
func (s *Subgraph) HasNode(name string) bool {
	_, ok := s.nodes[name]
	return ok
}

// Node returns the node with the given name, if present.
func (s *Subgraph) Node(name string) (GraphNode, bool) {
	n, ok := s.nodes[name]
	return n, ok
}

// Nodes returns the node set in unspecified order.
func (s *Subgraph) Nodes() []GraphNode {
	out := make([]GraphNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Edges returns the deduplicated edges in insertion order.
func (s *Subgraph) Edges() []GraphEdge {
	return s.edges
}

// NodeCount returns the number of nodes.
func (s *Subgraph) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *Subgraph) EdgeCount() int { return len(s.edges) }

// IsEmpty reports whether the subgraph holds no nodes.
func (s *Subgraph) IsEmpty() bool { return len(s.nodes) == 0 }

// MarshalJSON renders the subgraph as {"nodes": [...], "edges": [...]} with
// nodes sorted by name so output is stable across runs.
func (s *Subgraph) MarshalJSON() ([]byte, error) {
	nodes := s.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	edges := s.edges
	if edges == nil {
		edges = []GraphEdge{}
	}
	return json.Marshal(struct {
		Nodes []GraphNode `json:"nodes"`
		Edges []GraphEdge `json:"edges"`
	}{Nodes: nodes, Edges: edges})
}
