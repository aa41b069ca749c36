package repository

import (
	"context"

	"github.com/docsage/docsage-api/internal/domain/model"
)

// VectorRepository defines the interface for the semantic fragment index.
// Implementations must be safe for concurrent use.
type VectorRepository interface {
	// Search returns up to limit fragments ordered by ascending distance.
	// An optional metadata filter restricts candidates; nil means no filter.
	Search(ctx context.Context, query string, limit int, filter map[string]string) ([]model.VectorHit, error)

	// InsertFragments upserts the fragments of one document.
	InsertFragments(ctx context.Context, docID string, fragments []model.Fragment) error

	// DeleteDocument removes every fragment belonging to a document.
	DeleteDocument(ctx context.Context, docID string) error

	Close() error
}
