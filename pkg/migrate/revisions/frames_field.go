package revisions

import (
	"context"

	"github.com/framebase/framebase/pkg/migrate"
	"github.com/framebase/framebase/pkg/models"
)

// restoreFramesField crosses the boundary between versions 2 and 3. It
// reintroduces the frames field on video datasets as a view over the
// frame collection. The view is resolved at read time, so both directions
// only touch the descriptor and never the sample documents.
func restoreFramesField() *migrate.Revision {
	return &migrate.Revision{
		Version: VersionRestoreFramesField,
		Name:    "restore-frames-field",
		Up: func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
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
					EmbeddedDocType: models.DocTypeFrames,
				})
			}
			return &migrate.Changes{Descriptor: d}, nil
		},
		Down: func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
			d := ds.Descriptor
			if err := requireMediaType(d); err != nil {
				return nil, err
			}
			if d.MediaType == models.MediaTypeVideo {
				d.RemoveSampleField(models.FieldFrames)
			}
			return &migrate.Changes{Descriptor: d}, nil
		},
	}
}
