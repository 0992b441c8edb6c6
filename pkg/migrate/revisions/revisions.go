// Package revisions holds the built-in schema revisions of the dataset
// catalog.
//
// Version history:
//
//	1 add-media-type        stamps every dataset with its media type,
//	                        inferred from whether it has a frame
//	                        collection
//	2 drop-frames-summary   removes the legacy per-sample frames summary
//	                        that embedded each video's first frame in the
//	                        sample document
//	3 restore-frames-field  reintroduces frames on video datasets as a
//	                        catalog-only view over the frame collection
//
// Every revision is reversible. Downgrading across version 2 rebuilds the
// summaries from the stored frames, which cannot recover anything that
// was only ever kept inside the old summaries.
package revisions

import "github.com/framebase/framebase/pkg/migrate"

const (
	VersionAddMediaType       = 1
	VersionDropFramesSummary  = 2
	VersionRestoreFramesField = 3

	// Latest is the schema version new datasets are created at.
	Latest = VersionRestoreFramesField
)

// Options tunes optional revision behavior.
type Options struct {
	// FrameCounts adds a frame_count to each rebuilt summary when
	// downgrading across version 2, at the cost of one counting
	// aggregation over the frame collection.
	FrameCounts bool
}

// Registry returns a registry with every built-in revision registered.
func Registry(opts Options) *migrate.Registry {
	reg := migrate.NewRegistry()
	reg.MustRegister(addMediaType())
	reg.MustRegister(dropFramesSummary(opts))
	reg.MustRegister(restoreFramesField())
	return reg
}
