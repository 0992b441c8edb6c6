package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBulkWriter struct {
	batches [][]Update
	err     error
}

func (f *fakeBulkWriter) BulkWrite(ctx context.Context, collection string, ops []Update) (*BulkResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, ops)
	res := &BulkResult{}
	for i, op := range ops {
		if strings.HasPrefix(op.ID, "bad") {
			res.Failed = append(res.Failed, FailedUpdate{Index: i, ID: op.ID, Reason: "document not found"})
			continue
		}
		res.Applied++
	}
	return res, nil
}

func TestBatcherFlushEmpty(t *testing.T) {
	w := &fakeBulkWriter{}
	b := NewBatcher(w, "samples", 10)

	require.NoError(t, b.Flush(context.Background()))
	assert.Empty(t, w.batches, "no queued updates must mean no write")
	assert.Equal(t, BulkResult{}, b.Result())
}

func TestBatcherChunks(t *testing.T) {
	w := &fakeBulkWriter{}
	b := NewBatcher(w, "samples", 2)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, b.Add(ctx, Update{ID: id, Set: map[string]any{"x": 1}}))
	}
	require.NoError(t, b.Flush(ctx))

	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[1], 2)
	assert.Len(t, w.batches[2], 1)
	assert.Equal(t, "e", w.batches[2][0].ID)
	assert.Equal(t, 5, b.Result().Applied)
}

func TestBatcherGlobalFailureIndices(t *testing.T) {
	w := &fakeBulkWriter{}
	b := NewBatcher(w, "samples", 2)

	ctx := context.Background()
	require.NoError(t, b.Add(ctx,
		Update{ID: "a"},
		Update{ID: "bad-1"},
		Update{ID: "b"},
		Update{ID: "bad-2"},
		Update{ID: "c"},
	))
	require.NoError(t, b.Flush(ctx))

	res := b.Result()
	assert.Equal(t, 3, res.Applied)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, FailedUpdate{Index: 1, ID: "bad-1", Reason: "document not found"}, res.Failed[0])
	assert.Equal(t, FailedUpdate{Index: 3, ID: "bad-2", Reason: "document not found"}, res.Failed[1])
}

func TestBatcherTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	b := NewBatcher(&fakeBulkWriter{err: boom}, "samples", 1)

	err := b.Add(context.Background(), Update{ID: "a"})
	assert.ErrorIs(t, err, boom)
}

func TestBatcherDefaultLimit(t *testing.T) {
	b := NewBatcher(&fakeBulkWriter{}, "samples", 0)
	assert.Equal(t, DefaultBatchSize, b.limit)

	b = NewBatcher(&fakeBulkWriter{}, "samples", -5)
	assert.Equal(t, DefaultBatchSize, b.limit)
}
