package models

import (
	"time"

	"github.com/uptrace/bun"
)

// JobStatus represents the state of an ingestion job
type JobStatus int

const (
	JobStatusPending    JobStatus = 0
	JobStatusProcessing JobStatus = 1
	JobStatusCompleted  JobStatus = 2
	JobStatusFailed     JobStatus = 3
)

// IngestStage represents the individual stages of the ingestion process
type IngestStage int

const (
	StageChunking   IngestStage = 0
	StageEmbedding  IngestStage = 1
	StageExtraction IngestStage = 2
	StageGraphing   IngestStage = 3
)

// Document represents the metadata of an ingested document
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID            int64     `bun:",pk,autoincrement"`
	ContentHash   []byte    `bun:",unique,notnull"`
	Title         string    `bun:",notnull"`
	FragmentCount int       `bun:",nullzero"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// IngestJob represents the state machine for one document ingestion
type IngestJob struct {
	bun.BaseModel `bun:"table:ingest_jobs,alias:ij"`

	ID           int64       `bun:",pk,autoincrement"`
	DocumentID   int64       `bun:",notnull"`
	Document     *Document   `bun:"rel:belongs-to,join:document_id=id"`
	Status       JobStatus   `bun:",notnull"`
	Version      int         `bun:",notnull,default:1"`
	CurrentStage IngestStage `bun:",nullzero"`
	ErrorMessage string      `bun:",nullzero"`
	CreatedAt    time.Time   `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time   `bun:",nullzero,notnull,default:current_timestamp"`
}
