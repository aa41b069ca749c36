package bunstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docsage/docsage-api/internal/database"
	"github.com/docsage/docsage-api/internal/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// BunStore implements the registry repositories on top of a bun.DB. It backs
// ingestion idempotency (content-hash lookups) and job bookkeeping.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *sql.DB, dialect schema.Dialect) (*BunStore, error) {
	bunDB := bun.NewDB(db, dialect)

	store := &BunStore{db: bunDB}

	// Create tables if they don't exist
	ctx := context.Background()
	if _, err := bunDB.NewCreateTable().Model((*models.Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	if _, err := bunDB.NewCreateTable().Model((*models.IngestJob)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create ingest_jobs table: %w", err)
	}

	return store, nil
}

// DocumentRepository Implementation

func (s *BunStore) CreateDocument(ctx context.Context, doc *models.Document) (int64, error) {
	if _, err := s.db.NewInsert().Model(doc).Exec(ctx); err != nil {
		return 0, err
	}
	return doc.ID, nil
}

func (s *BunStore) GetDocumentByID(ctx context.Context, id int64) (*models.Document, error) {
	doc := new(models.Document)
	if err := s.db.NewSelect().Model(doc).Where("id = ?", id).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *BunStore) GetDocumentByHash(ctx context.Context, hash []byte) (*models.Document, error) {
	doc := new(models.Document)
	if err := s.db.NewSelect().Model(doc).Where("content_hash = ?", hash).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *BunStore) UpdateFragmentCount(ctx context.Context, id int64, count int) error {
	res, err := s.db.NewUpdate().Model((*models.Document)(nil)).
		Set("fragment_count = ?", count).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (s *BunStore) DeleteDocument(ctx context.Context, id int64) error {
	if _, err := s.db.NewDelete().Model((*models.Document)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return err
	}
	return nil
}

// JobRepository Implementation

func (s *BunStore) CreateJob(ctx context.Context, job *models.IngestJob) (int64, error) {
	if _, err := s.db.NewInsert().Model(job).Exec(ctx); err != nil {
		return 0, err
	}
	return job.ID, nil
}

func (s *BunStore) GetJobByID(ctx context.Context, id int64) (*models.IngestJob, error) {
	job := new(models.IngestJob)
	if err := s.db.NewSelect().Model(job).Where("id = ?", id).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *BunStore) GetLatestJobByDocumentID(ctx context.Context, docID int64) (*models.IngestJob, error) {
	job := new(models.IngestJob)
	if err := s.db.NewSelect().Model(job).Where("document_id = ?", docID).Order("created_at DESC").Limit(1).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// UpdateJobStatus uses optimistic locking on the version column so two
// workers resuming the same job cannot clobber each other.
func (s *BunStore) UpdateJobStatus(ctx context.Context, jobID int64, currentVersion int, status models.JobStatus, stage models.IngestStage, errorMsg string) error {
	res, err := s.db.NewUpdate().Model((*models.IngestJob)(nil)).
		Set("status = ?", status).
		Set("current_stage = ?", stage).
		Set("error_message = ?", errorMsg).
		Set("version = version + 1").
		Set("updated_at = current_timestamp").
		Where("id = ? AND version = ?", jobID, currentVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrConcurrentUpdate
	}
	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
