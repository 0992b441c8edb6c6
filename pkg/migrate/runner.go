package migrate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/framebase/framebase/pkg/store"
)

// Result reports where a migration started and where it ended.
type Result struct {
	Dataset string `json:"name"`
	From    int    `json:"from_version"`
	To      int    `json:"to_version"`
}

// Runner applies migration paths to datasets.
type Runner struct {
	store    store.Store
	registry *Registry
	log      zerolog.Logger

	// BatchSize bounds how many per-sample updates are sent per bulk
	// write. Zero selects the store default.
	BatchSize int
}

// NewRunner returns a Runner using the given store and registry.
func NewRunner(st store.Store, reg *Registry, log zerolog.Logger) *Runner {
	return &Runner{
		store:     st,
		registry:  reg,
		log:       log,
		BatchSize: store.DefaultBatchSize,
	}
}

// Apply migrates the named dataset to the target version, one revision at
// a time. A negative target selects the latest registered version. Each
// step commits its version bump before the next begins, so on failure the
// returned result reports the version the dataset actually reached.
func (r *Runner) Apply(ctx context.Context, dataset string, target int) (*Result, error) {
	d, err := r.store.GetDataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	if target < 0 {
		target = r.registry.Latest()
	}

	steps, err := r.registry.ResolvePath(d.SchemaVersion, target)
	if err != nil {
		return nil, err
	}

	result := &Result{Dataset: dataset, From: d.SchemaVersion, To: d.SchemaVersion}
	for _, step := range steps {
		if err := r.applyStep(ctx, dataset, step); err != nil {
			return result, fmt.Errorf("revision %d (%s, %s): %w",
				step.Revision.Version, step.Revision.Name, step.Direction, err)
		}
		result.To = step.Target()
	}

	r.log.Info().
		Str("dataset", dataset).
		Int("from_version", result.From).
		Int("to_version", result.To).
		Int("steps", len(steps)).
		Msg("dataset migrated")
	return result, nil
}

// applyStep runs one revision in one direction. The descriptor is
// re-read, validated and handed to the transform as a copy; the reshaped
// descriptor is persisted before any data mutation, and the version bump
// is persisted only after every mutation landed.
func (r *Runner) applyStep(ctx context.Context, dataset string, step Step) error {
	d, err := r.store.GetDataset(ctx, dataset)
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	ds := NewDataset(d.Clone(), r.store)
	changes, err := step.Transform()(ctx, ds)
	if err != nil {
		return err
	}

	for _, w := range changes.Warnings {
		r.log.Warn().
			Str("dataset", dataset).
			Int("version", step.Revision.Version).
			Str("direction", string(step.Direction)).
			Msg(w.Error())
	}

	desc := changes.Descriptor
	if desc == nil {
		desc = ds.Descriptor
	}
	desc.SchemaVersion = d.SchemaVersion
	if err := desc.Validate(); err != nil {
		return err
	}
	if err := r.store.PutDataset(ctx, desc); err != nil {
		return err
	}

	for _, field := range changes.RemoveFields {
		if err := r.store.RemoveField(ctx, desc.SampleCollectionName, field); err != nil {
			return err
		}
	}

	if len(changes.Updates) > 0 {
		b := store.NewBatcher(r.store, desc.SampleCollectionName, r.BatchSize)
		if err := b.Add(ctx, changes.Updates...); err != nil {
			return err
		}
		if err := b.Flush(ctx); err != nil {
			return err
		}
		if res := b.Result(); len(res.Failed) > 0 {
			return &PartialWriteError{
				Dataset:    dataset,
				Collection: desc.SampleCollectionName,
				Failed:     res.Failed,
			}
		}
	}

	desc.SchemaVersion = step.Target()
	if err := r.store.PutDataset(ctx, desc); err != nil {
		return err
	}

	r.log.Debug().
		Str("dataset", dataset).
		Str("revision", step.Revision.Name).
		Str("direction", string(step.Direction)).
		Int("version", desc.SchemaVersion).
		Int("updates", len(changes.Updates)).
		Msg("schema step applied")
	return nil
}
