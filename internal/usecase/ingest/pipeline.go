package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/docsage/docsage-api/internal/database"
	"github.com/docsage/docsage-api/internal/database/models"
	"github.com/docsage/docsage-api/internal/domain/model"
	"github.com/docsage/docsage-api/internal/domain/repository"
	"golang.org/x/sync/errgroup"
)

// extractionConcurrency bounds parallel LLM extraction calls so a large
// document does not starve the completion backend.
const extractionConcurrency = 4

// ErrAlreadyIngested is returned when a document with the same content hash
// has already completed ingestion.
var ErrAlreadyIngested = errors.New("document already ingested")

// Result summarizes one completed ingestion.
type Result struct {
	DocumentID    int64 `json:"document_id"`
	JobID         int64 `json:"job_id"`
	FragmentCount int   `json:"fragment_count"`
	EntityCount   int   `json:"entity_count"`
	RelationCount int   `json:"relation_count"`
}

// Pipeline orchestrates document ingestion across the vector index, the
// knowledge graph, and the registry: chunk, embed, extract, graph. Progress
// is tracked in the job repository so a crashed run leaves a diagnosable
// record.
type Pipeline struct {
	vector    repository.VectorRepository
	graph     repository.GraphRepository
	docs      database.DocumentRepository
	jobs      database.JobRepository
	chunker   *Chunker
	extractor *GraphExtractor
}

// NewPipeline creates an ingestion pipeline with the given chunking
// parameters.
func NewPipeline(vector repository.VectorRepository, graph repository.GraphRepository, docs database.DocumentRepository, jobs database.JobRepository, llm repository.LLMRouter, chunkSize, chunkOverlap int) *Pipeline {
	return &Pipeline{
		vector:    vector,
		graph:     graph,
		docs:      docs,
		jobs:      jobs,
		chunker:   NewChunker(chunkSize, chunkOverlap),
		extractor: NewGraphExtractor(llm),
	}
}

// Ingest runs the full pipeline for one document. Re-submitting identical
// content returns ErrAlreadyIngested instead of duplicating index entries.
func (p *Pipeline) Ingest(ctx context.Context, title, text string) (*Result, error) {
	hash := sha256.Sum256([]byte(text))

	doc, job, err := p.startOrResume(ctx, title, hash[:])
	if err != nil {
		return nil, err
	}
	docID := strconv.FormatInt(doc.ID, 10)
	log.Printf("[Pipeline] Starting ingestion: doc=%d job=%d title=%q", doc.ID, job.ID, title)

	fail := func(stage models.IngestStage, cause error) (*Result, error) {
		if statusErr := p.jobs.UpdateJobStatus(ctx, job.ID, job.Version, models.JobStatusFailed, stage, cause.Error()); statusErr != nil {
			log.Printf("[Pipeline] Failed to record job failure: %v", statusErr)
		}
		return nil, cause
	}

	// Stage: chunking
	if err := p.advance(ctx, job, models.JobStatusProcessing, models.StageChunking); err != nil {
		return nil, err
	}
	fragments := p.chunker.Chunk(docID, text)
	if len(fragments) == 0 {
		return fail(models.StageChunking, fmt.Errorf("document %q produced no fragments", title))
	}

	// Stage: embedding
	if err := p.advance(ctx, job, models.JobStatusProcessing, models.StageEmbedding); err != nil {
		return nil, err
	}
	log.Printf("[Pipeline] Inserting %d fragments into the vector index", len(fragments))
	if err := p.vector.InsertFragments(ctx, docID, fragments); err != nil {
		return fail(models.StageEmbedding, fmt.Errorf("vector insertion failed: %w", err))
	}

	// Stage: extraction
	if err := p.advance(ctx, job, models.JobStatusProcessing, models.StageExtraction); err != nil {
		return nil, err
	}
	entities, relations, err := p.extractAll(ctx, fragments)
	if err != nil {
		return fail(models.StageExtraction, fmt.Errorf("entity extraction failed: %w", err))
	}
	entities = DedupeEntities(entities)
	log.Printf("[Pipeline] Extracted %d entities and %d relations", len(entities), len(relations))

	// Stage: graphing
	if err := p.advance(ctx, job, models.JobStatusProcessing, models.StageGraphing); err != nil {
		return nil, err
	}
	if err := p.graph.InsertEntities(ctx, docID, entities); err != nil {
		return fail(models.StageGraphing, fmt.Errorf("graph entity insertion failed: %w", err))
	}
	if err := p.graph.InsertRelations(ctx, docID, relations); err != nil {
		return fail(models.StageGraphing, fmt.Errorf("graph relation insertion failed: %w", err))
	}

	if err := p.docs.UpdateFragmentCount(ctx, doc.ID, len(fragments)); err != nil {
		log.Printf("[Pipeline] Failed to update fragment count: %v", err)
	}
	if err := p.advance(ctx, job, models.JobStatusCompleted, models.StageGraphing); err != nil {
		return nil, err
	}

	log.Printf("[Pipeline] Ingestion complete: doc=%d fragments=%d", doc.ID, len(fragments))
	return &Result{
		DocumentID:    doc.ID,
		JobID:         job.ID,
		FragmentCount: len(fragments),
		EntityCount:   len(entities),
		RelationCount: len(relations),
	}, nil
}

// startOrResume registers the document and its job, deduplicating on the
// content hash.
func (p *Pipeline) startOrResume(ctx context.Context, title string, hash []byte) (*models.Document, *models.IngestJob, error) {
	existing, err := p.docs.GetDocumentByHash(ctx, hash)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, nil, err
	}

	var doc *models.Document
	if existing != nil {
		job, err := p.jobs.GetLatestJobByDocumentID(ctx, existing.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, nil, err
		}
		if job != nil && job.Status == models.JobStatusCompleted {
			return nil, nil, fmt.Errorf("%w: %q", ErrAlreadyIngested, title)
		}
		doc = existing
	} else {
		doc = &models.Document{ContentHash: hash, Title: title}
		id, err := p.docs.CreateDocument(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		doc.ID = id
	}

	job := &models.IngestJob{
		DocumentID:   doc.ID,
		Status:       models.JobStatusPending,
		CurrentStage: models.StageChunking,
	}
	jobID, err := p.jobs.CreateJob(ctx, job)
	if err != nil {
		return nil, nil, err
	}
	job.ID = jobID
	job.Version = 1

	return doc, job, nil
}

func (p *Pipeline) advance(ctx context.Context, job *models.IngestJob, status models.JobStatus, stage models.IngestStage) error {
	if err := p.jobs.UpdateJobStatus(ctx, job.ID, job.Version, status, stage, ""); err != nil {
		return fmt.Errorf("job %d status update: %w", job.ID, err)
	}
	job.Version++
	job.Status = status
	job.CurrentStage = stage
	return nil
}

// extractAll runs entity extraction across fragments with bounded
// concurrency. Per-fragment parse failures are already absorbed by the
// extractor; only transport errors abort the stage.
func (p *Pipeline) extractAll(ctx context.Context, fragments []model.Fragment) ([]model.GraphNode, []model.GraphEdge, error) {
	var (
		mu        sync.Mutex
		entities  []model.GraphNode
		relations []model.GraphEdge
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(extractionConcurrency)
	for _, frag := range fragments {
		g.Go(func() error {
			nodes, edges, err := p.extractor.Extract(ctx, frag.Content)
			if err != nil {
				return err
			}
			mu.Lock()
			entities = append(entities, nodes...)
			relations = append(relations, edges...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return entities, relations, nil
}
