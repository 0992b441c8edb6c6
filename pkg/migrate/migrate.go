// Package migrate moves datasets between schema versions. Revisions are
// registered per version boundary and declare how to cross it in both
// directions; the Runner resolves a path from the dataset's current
// version to a target and applies the steps one at a time, committing the
// version after each step so an aborted run never strands a dataset
// between versions.
package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

// Direction says which way a revision is crossed.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Dataset is what a transform sees: the descriptor it may reshape plus
// read access to the dataset's frames.
type Dataset struct {
	Descriptor *models.DatasetDescriptor

	frames store.FrameSource
}

// NewDataset pairs a descriptor with the frame source backing it.
func NewDataset(d *models.DatasetDescriptor, frames store.FrameSource) *Dataset {
	return &Dataset{Descriptor: d, frames: frames}
}

// FirstFrames streams every first frame of the dataset's frame collection.
// Datasets without a frame collection yield an empty cursor.
func (d *Dataset) FirstFrames(ctx context.Context) (store.FrameCursor, error) {
	if d.Descriptor.FrameCollectionName == "" {
		return store.NewSliceCursor(nil), nil
	}
	return d.frames.FirstFrames(ctx, d.Descriptor.FrameCollectionName)
}

// FrameCounts returns the number of frames per sample. Samples without
// frames are absent from the map.
func (d *Dataset) FrameCounts(ctx context.Context) (map[string]int, error) {
	if d.Descriptor.FrameCollectionName == "" {
		return map[string]int{}, nil
	}
	return d.frames.FrameCounts(ctx, d.Descriptor.FrameCollectionName)
}

// Changes is what a transform hands back: the reshaped descriptor and the
// data mutations that must land with it. The runner persists the
// descriptor first, then applies the mutations, then advances the version.
type Changes struct {
	// Descriptor is the updated descriptor. Its schema version is managed
	// by the runner, not the transform.
	Descriptor *models.DatasetDescriptor

	// RemoveFields lists fields to remove from every document of the
	// sample collection in one collection-wide operation each.
	RemoveFields []string

	// Updates lists per-sample mutations, applied in batches.
	Updates []store.Update

	// Warnings carries conditions worth surfacing without stopping the
	// migration, such as a lossy downgrade.
	Warnings []error
}

// Transform computes the changes that cross one version boundary in one
// direction. It must not write to the store itself.
type Transform func(ctx context.Context, ds *Dataset) (*Changes, error)

// Revision crosses the boundary between Version-1 and Version.
type Revision struct {
	// Version is the schema version this revision's Up step produces.
	Version int

	// Name identifies the revision in logs.
	Name string

	Up   Transform
	Down Transform
}

// Registry holds the registered revisions, at most one per version.
type Registry struct {
	revisions map[int]*Revision
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{revisions: make(map[int]*Revision)}
}

// Register adds rev. Registering a version twice is a configuration error
// and is rejected, as are revisions missing either transform.
func (r *Registry) Register(rev *Revision) error {
	if rev.Version < 1 {
		return fmt.Errorf("revision version %d must be at least 1", rev.Version)
	}
	if rev.Up == nil || rev.Down == nil {
		return fmt.Errorf("revision %d (%s) must declare both up and down", rev.Version, rev.Name)
	}
	if existing, ok := r.revisions[rev.Version]; ok {
		return fmt.Errorf("revision %d already registered as %s", rev.Version, existing.Name)
	}
	r.revisions[rev.Version] = rev
	return nil
}

// MustRegister is Register for wiring done at startup.
func (r *Registry) MustRegister(rev *Revision) {
	if err := r.Register(rev); err != nil {
		panic(err)
	}
}

// Revision returns the revision producing the given version.
func (r *Registry) Revision(version int) (*Revision, bool) {
	rev, ok := r.revisions[version]
	return rev, ok
}

// Versions returns the registered versions in ascending order.
func (r *Registry) Versions() []int {
	out := make([]int, 0, len(r.revisions))
	for v := range r.revisions {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Latest returns the highest registered version, or zero when the
// registry is empty.
func (r *Registry) Latest() int {
	latest := 0
	for v := range r.revisions {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// Step is one revision applied in one direction.
type Step struct {
	Revision  *Revision
	Direction Direction
}

// Target is the schema version the dataset sits at once the step commits.
func (s Step) Target() int {
	if s.Direction == DirectionUp {
		return s.Revision.Version
	}
	return s.Revision.Version - 1
}

// Transform returns the step's transform for its direction.
func (s Step) Transform() Transform {
	if s.Direction == DirectionUp {
		return s.Revision.Up
	}
	return s.Revision.Down
}

// ResolvePath returns the ordered steps moving a dataset from version
// from to version to. Equal versions resolve to no steps. A gap in the
// registered revisions fails with MissingRevisionError and no partial
// path is ever returned.
func (r *Registry) ResolvePath(from, to int) ([]Step, error) {
	if from < 0 || to < 0 {
		return nil, fmt.Errorf("schema versions cannot be negative (from %d, to %d)", from, to)
	}
	if from == to {
		return nil, nil
	}

	var steps []Step
	if from < to {
		for v := from + 1; v <= to; v++ {
			rev, ok := r.revisions[v]
			if !ok {
				return nil, &MissingRevisionError{Version: v, Direction: DirectionUp}
			}
			steps = append(steps, Step{Revision: rev, Direction: DirectionUp})
		}
		return steps, nil
	}
	for v := from; v > to; v-- {
		rev, ok := r.revisions[v]
		if !ok {
			return nil, &MissingRevisionError{Version: v, Direction: DirectionDown}
		}
		steps = append(steps, Step{Revision: rev, Direction: DirectionDown})
	}
	return steps, nil
}
