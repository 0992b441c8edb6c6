// Package storetest provides fixtures and an instrumented Store wrapper
// shared by backend and migration tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

// Flowers seeds s with a small video dataset in the legacy shape, where
// each sample with frames carries a frames summary embedding its first
// frame, and returns the descriptor. The dataset has three samples: two
// with frames and one with none.
func Flowers(t *testing.T, s store.Store) *models.DatasetDescriptor {
	t.Helper()
	ctx := context.Background()

	d := &models.DatasetDescriptor{
		Name:                 "flowers",
		MediaType:            models.MediaTypeVideo,
		SampleCollectionName: "samples_flowers",
		FrameCollectionName:  "frames_flowers",
		SampleFields: []models.FieldDescriptor{
			{Name: "filepath", Type: models.FieldTypeString},
			{
				Name:            models.FieldFrames,
				Type:            models.FieldTypeEmbeddedDocument,
				EmbeddedDocType: models.DocTypeFramesSummary,
			},
		},
		SchemaVersion: 1,
	}
	require.NoError(t, d.Validate())
	require.NoError(t, s.CreateDataset(ctx, d))

	frames := []models.Document{
		{"id": "f1", "_sample_id": "s1", "frame_number": 1, "label": "bud"},
		{"id": "f2", "_sample_id": "s1", "frame_number": 2, "label": "bloom"},
		{"id": "f3", "_sample_id": "s2", "frame_number": 1, "label": "wilt"},
	}
	require.NoError(t, s.InsertDocuments(ctx, d.FrameCollectionName, frames))

	samples := []models.Document{
		{
			"id":       "s1",
			"filepath": "/videos/rose.mp4",
			"frames":   map[string]any{models.KeyFirstFrame: map[string]any(frames[0].Clone())},
		},
		{
			"id":       "s2",
			"filepath": "/videos/tulip.mp4",
			"frames":   map[string]any{models.KeyFirstFrame: map[string]any(frames[2].Clone())},
		},
		{
			"id":       "s3",
			"filepath": "/videos/empty.mp4",
		},
	}
	require.NoError(t, s.InsertDocuments(ctx, d.SampleCollectionName, samples))
	return d
}

// Drain reads cur to exhaustion and closes it.
func Drain(t *testing.T, cur store.FrameCursor) []models.Document {
	t.Helper()
	ctx := context.Background()
	var out []models.Document
	for {
		doc, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, doc)
	}
	require.NoError(t, cur.Close(ctx))
	return out
}

// Recorder wraps a Store and keeps an ordered log of the calls that
// matter to migrations, so tests can assert what ran and in which order.
// Individual calls can be made to fail once to exercise abort paths.
type Recorder struct {
	store.Store

	mu sync.Mutex
	// Log holds one entry per recorded call, e.g. "PutDataset flowers 2"
	// or "BulkWrite samples_flowers 3".
	Log []string
	// BulkOps collects the update batches handed to BulkWrite.
	BulkOps [][]store.Update

	fail map[string]error
}

// NewRecorder returns a Recorder delegating to inner.
func NewRecorder(inner store.Store) *Recorder {
	return &Recorder{Store: inner, fail: make(map[string]error)}
}

// FailOnce makes the next call to the named method return err.
func (r *Recorder) FailOnce(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

// Count returns how many recorded calls start with prefix.
func (r *Recorder) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entry := range r.Log {
		if len(entry) >= len(prefix) && entry[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *Recorder) record(method string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := method
	for _, a := range args {
		entry += fmt.Sprintf(" %v", a)
	}
	r.Log = append(r.Log, entry)
	if err, ok := r.fail[method]; ok {
		delete(r.fail, method)
		return err
	}
	return nil
}

func (r *Recorder) GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error) {
	if err := r.record("GetDataset", name); err != nil {
		return nil, err
	}
	return r.Store.GetDataset(ctx, name)
}

func (r *Recorder) PutDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	if err := r.record("PutDataset", d.Name, d.SchemaVersion); err != nil {
		return err
	}
	return r.Store.PutDataset(ctx, d)
}

func (r *Recorder) RemoveField(ctx context.Context, collection, field string) error {
	if err := r.record("RemoveField", collection, field); err != nil {
		return err
	}
	return r.Store.RemoveField(ctx, collection, field)
}

func (r *Recorder) BulkWrite(ctx context.Context, collection string, ops []store.Update) (*store.BulkResult, error) {
	r.mu.Lock()
	r.BulkOps = append(r.BulkOps, ops)
	r.mu.Unlock()
	if err := r.record("BulkWrite", collection, len(ops)); err != nil {
		return nil, err
	}
	return r.Store.BulkWrite(ctx, collection, ops)
}

func (r *Recorder) FirstFrames(ctx context.Context, collection string) (store.FrameCursor, error) {
	if err := r.record("FirstFrames", collection); err != nil {
		return nil, err
	}
	return r.Store.FirstFrames(ctx, collection)
}

func (r *Recorder) FrameCounts(ctx context.Context, collection string) (map[string]int, error) {
	if err := r.record("FrameCounts", collection); err != nil {
		return nil, err
	}
	return r.Store.FrameCounts(ctx, collection)
}

func (r *Recorder) AcquireLease(ctx context.Context, dataset, holder string, ttl time.Duration) (bool, error) {
	if err := r.record("AcquireLease", dataset); err != nil {
		return false, err
	}
	return r.Store.AcquireLease(ctx, dataset, holder, ttl)
}

func (r *Recorder) ReleaseLease(ctx context.Context, dataset, holder string) error {
	if err := r.record("ReleaseLease", dataset); err != nil {
		return err
	}
	return r.Store.ReleaseLease(ctx, dataset, holder)
}
