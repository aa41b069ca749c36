package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docsage/docsage-api/internal/config"
	"github.com/docsage/docsage-api/internal/database/bunstore"
	"github.com/docsage/docsage-api/internal/domain/repository"
	"github.com/docsage/docsage-api/internal/infrastructure/llm"
	neo4jpkg "github.com/docsage/docsage-api/internal/infrastructure/neo4j"
	qdrantpkg "github.com/docsage/docsage-api/internal/infrastructure/qdrant"
	"github.com/docsage/docsage-api/internal/infrastructure/resilience"
	httpserver "github.com/docsage/docsage-api/internal/interface/http"
	"github.com/docsage/docsage-api/internal/usecase/ingest"
	"github.com/docsage/docsage-api/internal/usecase/query"
	"github.com/docsage/docsage-api/internal/usecase/traversal"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Cloud backends flap under quota pressure; trip after 5 consecutive
// failures and probe again after 30 seconds.
const (
	breakerFailThreshold = 5
	breakerOpenTimeout   = 30 * time.Second
)

type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	dbConn     *sql.DB
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

func (s *Server) Run() error {
	ctx := context.Background()

	// ==========================================
	// Initialize Dependencies (Dependency Injection)
	// ==========================================

	localClient := llm.NewOllamaClient(s.cfg.OllamaHost, s.cfg.OllamaLLMModel, s.cfg.OllamaEmbedModel)

	var cloudClient repository.CompletionClient
	var embedder repository.EmbeddingClient = localClient

	switch s.cfg.LLMProvider {
	case "gemini":
		geminiClient, err := llm.NewGeminiClient(ctx, s.cfg.GeminiAPIKey, s.cfg.GeminiModel)
		if err != nil {
			return err
		}
		defer func() { _ = geminiClient.Close() }()

		geminiEmbedder, err := llm.NewGeminiEmbedder(ctx, s.cfg.GeminiAPIKey, s.cfg.GeminiEmbedModel)
		if err != nil {
			return err
		}
		defer func() { _ = geminiEmbedder.Close() }()

		cloudClient = geminiClient
		embedder = geminiEmbedder

	case "openai":
		openaiClient, err := llm.NewOpenAIClient(s.cfg.OpenAIAPIKey, s.cfg.OpenAIModel)
		if err != nil {
			return err
		}
		cloudClient = openaiClient

	case "ollama":
		log.Println("[System] 🏠 Running local-only: Ollama serves every task.")

		// Make sure the configured models are present before taking traffic.
		log.Printf("[System] 📥 Ensuring local models '%s' and '%s' are available...", s.cfg.OllamaLLMModel, s.cfg.OllamaEmbedModel)
		if err := localClient.PullModel(ctx, s.cfg.OllamaLLMModel); err != nil {
			log.Printf("[Warning] 📥 Failed to pull LLM model '%s': %v", s.cfg.OllamaLLMModel, err)
		}
		if err := localClient.PullModel(ctx, s.cfg.OllamaEmbedModel); err != nil {
			log.Printf("[Warning] 📥 Failed to pull Embed model '%s': %v", s.cfg.OllamaEmbedModel, err)
		}

	default:
		return fmt.Errorf("unknown LLM provider %q", s.cfg.LLMProvider)
	}

	if cloudClient != nil {
		cloudClient = resilience.NewGuardedCompletion(cloudClient, resilience.NewCircuitBreaker(breakerFailThreshold, breakerOpenTimeout))
	}

	llmRouter := llm.NewRouter(localClient, cloudClient)
	log.Printf("[System] 🛤️  LLM Router initialized (provider=%s, embedder=%s)", s.cfg.LLMProvider, embedder.Name())

	// Document registry (SQLite via bun)
	var err error
	s.dbConn, err = sql.Open(sqliteshim.ShimName, s.cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.dbConn.Close(); closeErr != nil {
			log.Printf("[Warning] Failed to close database: %v", closeErr)
		}
	}()

	bunStore, err := bunstore.NewBunStore(s.dbConn, sqlitedialect.New())
	if err != nil {
		return err
	}

	// Vector index and knowledge graph
	vectorStore, err := qdrantpkg.NewStore(s.cfg.QdrantHost, s.cfg.QdrantPort, s.cfg.QdrantCollection, embedder, uint64(s.cfg.VectorSize))
	if err != nil {
		return err
	}
	defer func() { _ = vectorStore.Close() }()

	graphStore, err := neo4jpkg.NewStore(ctx, s.cfg.Neo4jURI, s.cfg.Neo4jUser, s.cfg.Neo4jPassword)
	if err != nil {
		return err
	}
	defer func() { _ = graphStore.Close(ctx) }()

	// Usecases
	engine := traversal.NewEngine(graphStore)
	queryRouter := query.NewRouter(llmRouter)
	retriever := query.NewWeightedHybridRetriever(vectorStore, engine, s.cfg.VectorWeight, 1-s.cfg.VectorWeight)
	generator := query.NewGenerator(llmRouter)
	pipeline := ingest.NewPipeline(vectorStore, graphStore, bunStore, bunStore, llmRouter, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

	// ==========================================
	// Initialize and Start HTTP Server
	// ==========================================

	apiServer := httpserver.NewServer(queryRouter, retriever, generator, engine, pipeline)
	handler := apiServer.RegisterRoutes()

	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: handler,
	}

	// Listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("[System] 🌐 Starting REST API Server on %s", s.cfg.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Error] HTTP server failed: %v", err)
		}
	}()

	<-stop
	log.Println("[System] 🛑 Shutdown signal received. Draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Error] HTTP shutdown error: %v", err)
	}

	log.Println("[System] ✅ Server stopped gracefully.")
	return nil
}
