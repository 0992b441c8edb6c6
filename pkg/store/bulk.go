package store

import "context"

// DefaultBatchSize is the number of updates a Batcher accumulates before
// submitting them in one BulkWrite call.
const DefaultBatchSize = 1000

// Update is one per-document mutation: set the given fields and unset the
// named ones on the document with the given id.
type Update struct {
	ID    string
	Set   map[string]any
	Unset []string
}

// FailedUpdate records one update a bulk write could not apply. Index is
// the update's position in the overall sequence handed to the Batcher, so
// callers can tie failures back to their inputs across batches.
type FailedUpdate struct {
	Index  int
	ID     string
	Reason string
}

// BulkResult aggregates the outcome of one or more bulk writes.
type BulkResult struct {
	// Applied counts the updates that took effect.
	Applied int

	// Failed lists the updates that did not, in submission order.
	Failed []FailedUpdate
}

// Batcher accumulates updates for one collection and submits them in
// batches of at most limit, so that arbitrarily large migrations never
// build a single unbounded request.
type Batcher struct {
	w          BulkWriter
	collection string
	limit      int
	pending    []Update
	submitted  int
	result     BulkResult
}

// NewBatcher returns a Batcher writing to collection through w. A limit of
// zero or less selects DefaultBatchSize.
func NewBatcher(w BulkWriter, collection string, limit int) *Batcher {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return &Batcher{w: w, collection: collection, limit: limit}
}

// Add queues ops, submitting a batch whenever the queue reaches the limit.
func (b *Batcher) Add(ctx context.Context, ops ...Update) error {
	for _, op := range ops {
		b.pending = append(b.pending, op)
		if len(b.pending) >= b.limit {
			if err := b.flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush submits any queued updates. Calling Flush with nothing queued is a
// no-op and performs no write.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	return b.flush(ctx)
}

func (b *Batcher) flush(ctx context.Context) error {
	batch := b.pending
	b.pending = nil
	res, err := b.w.BulkWrite(ctx, b.collection, batch)
	if err != nil {
		return err
	}
	b.result.Applied += res.Applied
	for _, f := range res.Failed {
		f.Index += b.submitted
		b.result.Failed = append(b.result.Failed, f)
	}
	b.submitted += len(batch)
	return nil
}

// Result returns the aggregated outcome of all batches submitted so far.
func (b *Batcher) Result() BulkResult { return b.result }
