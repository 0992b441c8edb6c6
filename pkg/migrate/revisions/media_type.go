package revisions

import (
	"context"

	"github.com/framebase/framebase/pkg/migrate"
	"github.com/framebase/framebase/pkg/models"
)

// addMediaType crosses the boundary between the unversioned catalog and
// version 1. Datasets created before media types existed are recognizable
// by their frame collection: only videos ever had one.
func addMediaType() *migrate.Revision {
	return &migrate.Revision{
		Version: VersionAddMediaType,
		Name:    "add-media-type",
		Up: func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
			d := ds.Descriptor
			if d.MediaType == "" {
				if d.FrameCollectionName != "" {
					d.MediaType = models.MediaTypeVideo
				} else {
					d.MediaType = models.MediaTypeImage
				}
			}
			return &migrate.Changes{Descriptor: d}, nil
		},
		Down: func(ctx context.Context, ds *migrate.Dataset) (*migrate.Changes, error) {
			d := ds.Descriptor
			d.MediaType = ""
			return &migrate.Changes{Descriptor: d}, nil
		},
	}
}

// requireMediaType guards revisions that behave differently per media
// type against descriptors that were never stamped.
func requireMediaType(d *models.DatasetDescriptor) error {
	if d.MediaType == "" {
		return &models.SchemaError{
			Dataset: d.Name,
			Reason:  "media type not set; apply the add-media-type revision first",
		}
	}
	return nil
}
