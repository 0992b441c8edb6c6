package revisions

import (
	"context"
	"fmt"

	"github.com/framebase/framebase/pkg/migrate"
	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

// dropFramesSummary crosses the boundary between versions 1 and 2.
//
// Before version 2, every video sample carried a frames summary: an
// embedded document holding a full copy of the sample's first frame.
// Going up removes the field from the descriptor and from every sample
// document in one collection-wide operation. Going down rebuilds the
// summaries by streaming the first frame of every sample out of the frame
// collection and writing them back per sample.
//
// Both directions leave non-video datasets untouched, and both are
// idempotent: removing an absent field changes nothing, and a rebuilt
// summary overwrites a present one.
func dropFramesSummary(opts Options) *migrate.Revision {
	return &migrate.Revision{
		Version: VersionDropFramesSummary,
		Name:    "drop-frames-summary",
		Up: func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
			d := ds.Descriptor
			if err := requireMediaType(d); err != nil {
				return nil, err
			}
			if d.MediaType != models.MediaTypeVideo {
				return &migrate.Changes{Descriptor: d}, nil
			}

			d.RemoveSampleField(models.FieldFrames)
			return &migrate.Changes{
				Descriptor:   d,
				RemoveFields: []string{models.FieldFrames},
			}, nil
		},
		Down: func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
			d := ds.Descriptor
			if err := requireMediaType(d); err != nil {
				return nil, err
			}
			if d.MediaType != models.MediaTypeVideo {
				return &migrate.Changes{Descriptor: d}, nil
			}

			if !d.HasSampleField(models.FieldFrames) {
				d.SampleFields = append(d.SampleFields, models.FieldDescriptor{
					Name:            models.FieldFrames,
					Type:            models.FieldTypeEmbeddedDocument,
					EmbeddedDocType: models.DocTypeFramesSummary,
				})
			} else {
				// A frames field left by a later schema changes meaning
				// here: it becomes a summary again.
				for i := range d.SampleFields {
					if d.SampleFields[i].Name == models.FieldFrames {
						d.SampleFields[i].Type = models.FieldTypeEmbeddedDocument
						d.SampleFields[i].EmbeddedDocType = models.DocTypeFramesSummary
					}
				}
			}

			updates, err := rebuildSummaries(ctx, ds, opts)
			if err != nil {
				return nil, err
			}
			return &migrate.Changes{
				Descriptor: d,
				Updates:    updates,
				Warnings: []error{migrate.LossWarning{
					Reason: "frames summaries rebuilt from the frame collection; anything stored only in the old summaries is not recovered",
				}},
			}, nil
		},
	}
}

// rebuildSummaries produces one update per sample that has a first frame.
// Samples without frames get no summary, exactly as they had none before
// the upgrade.
func rebuildSummaries(ctx context.Context, ds *migrate.Dataset, opts Options) ([]store.Update, error) {
	var counts map[string]int
	if opts.FrameCounts {
		var err error
		counts, err = ds.FrameCounts(ctx)
		if err != nil {
			return nil, err
		}
	}

	cur, err := ds.FirstFrames(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var updates []store.Update
	for {
		frame, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ref, ok := models.SampleRef(frame)
		if !ok {
			id, _ := frame.ID()
			return nil, fmt.Errorf("frame %q has no sample reference", id)
		}

		summary := map[string]any{
			models.KeyFirstFrame: map[string]any(frame.Clone()),
		}
		if counts != nil {
			if n, ok := counts[ref]; ok {
				summary[models.KeyFrameCount] = n
			}
		}
		updates = append(updates, store.Update{
			ID:  ref,
			Set: map[string]any{models.FieldFrames: summary},
		})
	}
	return updates, nil
}
