// Package store defines the persistence contract for the dataset catalog
// and its document collections, shared by the memory, surreal and mongo
// backends.
package store

import (
	"context"
	"time"

	"github.com/framebase/framebase/pkg/models"
)

// Catalog manages dataset descriptors, keyed by dataset name.
type Catalog interface {
	// CreateDataset stores a new descriptor. It returns ErrDatasetExists
	// when the name is taken.
	CreateDataset(ctx context.Context, d *models.DatasetDescriptor) error

	// GetDataset returns the descriptor for the named dataset, or
	// ErrDatasetNotFound.
	GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error)

	// PutDataset replaces the descriptor stored under d.Name, creating it
	// if absent.
	PutDataset(ctx context.Context, d *models.DatasetDescriptor) error

	// ListDatasets returns all descriptors ordered by name.
	ListDatasets(ctx context.Context) ([]*models.DatasetDescriptor, error)

	// DeleteDataset removes the named dataset and drops its sample and
	// frame collections. It returns ErrDatasetNotFound when absent.
	DeleteDataset(ctx context.Context, name string) error
}

// Documents reads and writes the schemaless documents of one collection.
type Documents interface {
	// InsertDocuments adds docs to the named collection.
	InsertDocuments(ctx context.Context, collection string, docs []models.Document) error

	// ListDocuments returns up to limit documents ordered by id, skipping
	// offset. A limit of zero or less means no limit.
	ListDocuments(ctx context.Context, collection string, limit, offset int) ([]models.Document, error)

	// CountDocuments returns the number of documents in the collection.
	CountDocuments(ctx context.Context, collection string) (int, error)

	// RemoveField removes the named field from every document in the
	// collection in a single collection-wide operation.
	RemoveField(ctx context.Context, collection, field string) error
}

// BulkWriter applies batches of per-document updates.
type BulkWriter interface {
	// BulkWrite applies ops to the named collection. Per-document
	// failures are reported in the result rather than as an error; the
	// returned error is reserved for transport-level failures where the
	// fate of the batch is unknown.
	BulkWrite(ctx context.Context, collection string, ops []Update) (*BulkResult, error)
}

// FrameCursor streams frame documents one at a time.
type FrameCursor interface {
	// Next returns the next document. The bool is false once the cursor
	// is exhausted.
	Next(ctx context.Context) (models.Document, bool, error)

	// Close releases the cursor.
	Close(ctx context.Context) error
}

// FrameSource exposes the per-sample frame queries the schema revisions
// need when reshaping video datasets.
type FrameSource interface {
	// FirstFrames returns a cursor over every frame with frame number
	// one in the collection, ordered by sample reference.
	FirstFrames(ctx context.Context, collection string) (FrameCursor, error)

	// FrameCounts returns the number of frames per sample reference.
	// Samples with no frames do not appear in the map.
	FrameCounts(ctx context.Context, collection string) (map[string]int, error)
}

// Leases grants short-lived advisory locks on datasets so that concurrent
// writers back off during schema changes.
type Leases interface {
	// AcquireLease takes the lease on the named dataset for holder. It
	// returns false when another holder owns an unexpired lease. Expired
	// leases are taken over.
	AcquireLease(ctx context.Context, dataset, holder string, ttl time.Duration) (bool, error)

	// ReleaseLease drops the lease if holder still owns it. Releasing a
	// lease that is absent or owned by someone else is not an error.
	ReleaseLease(ctx context.Context, dataset, holder string) error
}

// Store is the full persistence surface a backend must provide.
type Store interface {
	Catalog
	Documents
	BulkWriter
	FrameSource
	Leases

	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// SliceCursor is a FrameCursor over an in-memory slice, for backends that
// buffer their query results.
type SliceCursor struct {
	docs []models.Document
	pos  int
}

// NewSliceCursor returns a cursor yielding docs in order.
func NewSliceCursor(docs []models.Document) *SliceCursor {
	return &SliceCursor{docs: docs}
}

func (c *SliceCursor) Next(ctx context.Context) (models.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if c.pos >= len(c.docs) {
		return nil, false, nil
	}
	doc := c.docs[c.pos]
	c.pos++
	return doc, true, nil
}

func (c *SliceCursor) Close(ctx context.Context) error { return nil }
