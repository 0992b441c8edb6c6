package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := models.NewDatasetDescriptor("roadside", models.MediaTypeVideo, 3)
	require.NoError(t, s.CreateDataset(ctx, d))
	assert.ErrorIs(t, s.CreateDataset(ctx, d), store.ErrDatasetExists)

	got, err := s.GetDataset(ctx, "roadside")
	require.NoError(t, err)
	assert.Equal(t, d, got)

	// Mutating what we got back must not touch the stored descriptor.
	got.SchemaVersion = 99
	again, err := s.GetDataset(ctx, "roadside")
	require.NoError(t, err)
	assert.Equal(t, 3, again.SchemaVersion)

	_, err = s.GetDataset(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrDatasetNotFound)

	d.SchemaVersion = 2
	require.NoError(t, s.PutDataset(ctx, d))
	got, err = s.GetDataset(ctx, "roadside")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SchemaVersion)

	require.NoError(t, s.CreateDataset(ctx, models.NewDatasetDescriptor("aerial", models.MediaTypeImage, 3)))
	all, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "aerial", all[0].Name)
	assert.Equal(t, "roadside", all[1].Name)
}

func TestDeleteDatasetDropsCollections(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := models.NewDatasetDescriptor("roadside", models.MediaTypeVideo, 3)
	require.NoError(t, s.CreateDataset(ctx, d))
	require.NoError(t, s.InsertDocuments(ctx, d.SampleCollectionName, []models.Document{{"id": "s1"}}))
	require.NoError(t, s.InsertDocuments(ctx, d.FrameCollectionName, []models.Document{{"id": "f1"}}))

	require.NoError(t, s.DeleteDataset(ctx, "roadside"))
	assert.ErrorIs(t, s.DeleteDataset(ctx, "roadside"), store.ErrDatasetNotFound)

	n, err := s.CountDocuments(ctx, d.SampleCollectionName)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountDocuments(ctx, d.FrameCollectionName)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()

	docs := []models.Document{
		{"id": "c", "filepath": "/c.png"},
		{"id": "a", "filepath": "/a.png"},
		{"id": "b", "filepath": "/b.png"},
	}
	require.NoError(t, s.InsertDocuments(ctx, "samples", docs))

	n, err := s.CountDocuments(ctx, "samples")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.ListDocuments(ctx, "samples", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0]["id"])
	assert.Equal(t, "c", all[2]["id"])

	page, err := s.ListDocuments(ctx, "samples", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0]["id"])

	past, err := s.ListDocuments(ctx, "samples", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestInsertGeneratesMissingIDs(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertDocuments(ctx, "samples", []models.Document{{"filepath": "/a.png"}}))
	all, err := s.ListDocuments(ctx, "samples", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	id, ok := all[0].ID()
	assert.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestRemoveField(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertDocuments(ctx, "samples", []models.Document{
		{"id": "a", "frames": map[string]any{"first_frame": map[string]any{}}},
		{"id": "b"},
	}))
	require.NoError(t, s.RemoveField(ctx, "samples", "frames"))

	all, err := s.ListDocuments(ctx, "samples", 0, 0)
	require.NoError(t, err)
	for _, doc := range all {
		_, ok := doc["frames"]
		assert.False(t, ok)
	}
}

func TestBulkWrite(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertDocuments(ctx, "samples", []models.Document{
		{"id": "a", "stale": true},
		{"id": "b"},
	}))

	res, err := s.BulkWrite(ctx, "samples", []store.Update{
		{ID: "a", Set: map[string]any{"frames": map[string]any{"n": 1}}, Unset: []string{"stale"}},
		{ID: "ghost", Set: map[string]any{"frames": map[string]any{}}},
		{ID: "b", Set: map[string]any{"tag": "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, store.FailedUpdate{Index: 1, ID: "ghost", Reason: "document not found"}, res.Failed[0])

	all, err := s.ListDocuments(ctx, "samples", 0, 0)
	require.NoError(t, err)
	a := all[0]
	_, stale := a["stale"]
	assert.False(t, stale)
	assert.NotNil(t, a["frames"])
}

func TestFirstFrames(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertDocuments(ctx, "frames", []models.Document{
		{"id": "f3", "_sample_id": "s2", "frame_number": 1},
		{"id": "f1", "_sample_id": "s1", "frame_number": 1},
		{"id": "f2", "_sample_id": "s1", "frame_number": 2},
	}))

	cur, err := s.FirstFrames(ctx, "frames")
	require.NoError(t, err)
	defer cur.Close(ctx)

	var refs []string
	for {
		doc, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		n, _ := models.FrameNumber(doc)
		assert.Equal(t, 1, n)
		ref, _ := models.SampleRef(doc)
		refs = append(refs, ref)
	}
	assert.Equal(t, []string{"s1", "s2"}, refs)
}

func TestFrameCounts(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InsertDocuments(ctx, "frames", []models.Document{
		{"id": "f1", "_sample_id": "s1", "frame_number": 1},
		{"id": "f2", "_sample_id": "s1", "frame_number": 2},
		{"id": "f3", "_sample_id": "s2", "frame_number": 1},
		{"id": "f4", "frame_number": 1},
	}))

	counts, err := s.FrameCounts(ctx, "frames")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"s1": 2, "s2": 1}, counts)
}

func TestLease(t *testing.T) {
	ctx := context.Background()
	s := New()

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ok, err := s.AcquireLease(ctx, "roadside", "alpha", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLease(ctx, "roadside", "beta", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "unexpired lease must not be taken over")

	// The current holder renews.
	ok, err = s.AcquireLease(ctx, "roadside", "alpha", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// After expiry anyone may take it.
	clock = clock.Add(2 * time.Minute)
	ok, err = s.AcquireLease(ctx, "roadside", "beta", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Releasing someone else's lease does nothing.
	require.NoError(t, s.ReleaseLease(ctx, "roadside", "alpha"))
	ok, err = s.AcquireLease(ctx, "roadside", "gamma", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseLease(ctx, "roadside", "beta"))
	ok, err = s.AcquireLease(ctx, "roadside", "gamma", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
