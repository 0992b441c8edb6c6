package framebase

import (
	"context"
	"errors"
	"fmt"

	"github.com/framebase/framebase/pkg/migrate"
)

// Migrate moves one dataset to the target schema version under the
// dataset lease. A negative target means the latest registered version.
func (a *App) Migrate(ctx context.Context, name string, target int) (*migrate.Result, error) {
	lease, err := migrate.AcquireLease(ctx, a.store, name, a.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn().Err(err).Str("dataset", name).Msg("lease release failed")
		}
	}()

	return a.runner.Apply(ctx, name, target)
}

// MigrateAll migrates every dataset, collecting per-dataset failures so
// one broken dataset does not stop the rest.
func (a *App) MigrateAll(ctx context.Context, target int) error {
	datasets, err := a.store.ListDatasets(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, d := range datasets {
		if _, err := a.Migrate(ctx, d.Name, target); err != nil {
			a.log.Error().Err(err).Str("dataset", d.Name).Msg("migration failed")
			errs = append(errs, fmt.Errorf("dataset %q: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}
