package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
	"github.com/docsage/docsage-api/internal/usecase/ingest"
	"github.com/docsage/docsage-api/internal/usecase/query"
	"github.com/docsage/docsage-api/internal/usecase/traversal"
)

// Server holds the dependencies for the HTTP API server
type Server struct {
	router    *query.Router
	retriever *query.HybridRetriever
	generator *query.Generator
	engine    *traversal.Engine
	pipeline  *ingest.Pipeline
}

// NewServer initializes a new API server with the required dependencies
func NewServer(router *query.Router, retriever *query.HybridRetriever, generator *query.Generator, engine *traversal.Engine, pipeline *ingest.Pipeline) *Server {
	return &Server{
		router:    router,
		retriever: retriever,
		generator: generator,
		engine:    engine,
		pipeline:  pipeline,
	}
}

// RegisterRoutes registers all API endpoints with a new ServeMux
func (s *Server) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Go 1.22+ supports HTTP method routing directly in ServeMux
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("POST /api/v1/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/v1/graph/stats", s.handleGraphStats)
	mux.HandleFunc("GET /api/v1/graph/neighbors", s.handleNeighbors)
	mux.HandleFunc("GET /api/v1/graph/path", s.handlePath)

	return mux
}

type QueryRequest struct {
	Query    string `json:"query"`
	Strategy string `json:"strategy,omitempty"`
}

type QueryResponse struct {
	Analysis model.QueryAnalysis     `json:"analysis"`
	Policy   model.RetrievalPolicy   `json:"policy"`
	Results  []model.RetrievalResult `json:"results"`
	Subgraph *model.Subgraph         `json:"subgraph,omitempty"`
	Answer   query.Answer            `json:"answer"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "Query field is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	analysis := s.router.Classify(ctx, req.Query)
	policy := query.PolicyFor(analysis)

	if req.Strategy != "" {
		strategy, err := model.ParseStrategy(req.Strategy)
		if err != nil {
			http.Error(w, "Unknown strategy: "+req.Strategy, http.StatusBadRequest)
			return
		}
		policy = policy.WithStrategy(strategy)
	}

	results, err := s.retriever.Retrieve(ctx, req.Query, policy)
	if err != nil {
		log.Printf("[Server] Retrieval failed: %v", err)
		http.Error(w, "Retrieval backend unavailable", http.StatusBadGateway)
		return
	}

	var subgraph *model.Subgraph
	if len(analysis.KeyEntities) > 0 && policy.Strategy != model.StrategyVectorOnly {
		subgraph, err = s.engine.Subgraph(ctx, analysis.KeyEntities, policy.GraphDepth)
		if err != nil {
			// Graph context is an enrichment; answer from documents alone.
			log.Printf("[Server] Subgraph assembly failed: %v", err)
			subgraph = nil
		}
	}

	answer := s.generator.Generate(ctx, req.Query, results, subgraph)

	writeJSON(w, http.StatusOK, QueryResponse{
		Analysis: analysis,
		Policy:   policy,
		Results:  results,
		Subgraph: subgraph,
		Answer:   answer,
	})
}

type IngestRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Text == "" {
		http.Error(w, "Title and text fields are required", http.StatusBadRequest)
		return
	}

	log.Printf("[Server] Received ingest request for %q (%d bytes)", req.Title, len(req.Text))

	result, err := s.pipeline.Ingest(r.Context(), req.Title, req.Text)
	if err != nil {
		if errors.Is(err, ingest.ErrAlreadyIngested) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("[Server] Ingestion failed: %v", err)
		http.Error(w, "Ingestion failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

type GraphStatsResponse struct {
	NodeCount int64            `json:"node_count"`
	EdgeCount int64            `json:"edge_count"`
	EdgeTypes map[string]int64 `json:"edge_types"`
}

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		log.Printf("[Server] Graph stats failed: %v", err)
		http.Error(w, "Graph backend unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, GraphStatsResponse{
		NodeCount: stats.NodeCount,
		EdgeCount: stats.EdgeCount,
		EdgeTypes: stats.EdgeTypes,
	})
}

type NeighborsResponse struct {
	Entity    string           `json:"entity"`
	Depth     int              `json:"depth"`
	Neighbors []model.Neighbor `json:"neighbors"`
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name parameter is required", http.StatusBadRequest)
		return
	}
	depth := queryInt(r, "depth", 2)

	neighbors, err := s.engine.Expand(r.Context(), name, depth, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Entity not found: "+name, http.StatusNotFound)
			return
		}
		log.Printf("[Server] Neighbor expansion failed: %v", err)
		http.Error(w, "Graph backend unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, NeighborsResponse{Entity: name, Depth: depth, Neighbors: neighbors})
}

type PathResponse struct {
	Source string      `json:"source"`
	Target string      `json:"target"`
	Found  bool        `json:"found"`
	Path   *model.Path `json:"path,omitempty"`
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		http.Error(w, "source and target parameters are required", http.StatusBadRequest)
		return
	}
	maxDepth := queryInt(r, "max_depth", 5)

	path, err := s.engine.ShortestPath(r.Context(), source, target, maxDepth)
	if err != nil {
		log.Printf("[Server] Shortest path failed: %v", err)
		http.Error(w, "Graph backend unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, PathResponse{
		Source: source,
		Target: target,
		Found:  path != nil,
		Path:   path,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}
