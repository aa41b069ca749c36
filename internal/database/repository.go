package database

import (
	"context"
	"errors"

	"github.com/docsage/docsage-api/internal/database/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected: version mismatch")
)

// DocumentRepository handles document metadata persistence
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *models.Document) (int64, error)
	GetDocumentByID(ctx context.Context, id int64) (*models.Document, error)
	GetDocumentByHash(ctx context.Context, hash []byte) (*models.Document, error)
	UpdateFragmentCount(ctx context.Context, id int64, count int) error
	DeleteDocument(ctx context.Context, id int64) error
}

// JobRepository handles ingest job state persistence
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.IngestJob) (int64, error)
	GetJobByID(ctx context.Context, id int64) (*models.IngestJob, error)
	GetLatestJobByDocumentID(ctx context.Context, docID int64) (*models.IngestJob, error)
	UpdateJobStatus(ctx context.Context, jobID int64, currentVersion int, status models.JobStatus, stage models.IngestStage, errorMsg string) error
}
