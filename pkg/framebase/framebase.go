package framebase

import (
	"context"
	"fmt"
	"os"

	"github.com/framebase/framebase/pkg/logger"
)

// Main parses args, assembles the app and dispatches the subcommand. It
// is the whole program behind cmd/framebase.
func Main(ctx context.Context, args []string) error {
	cmd, cfg, err := Parse(args)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, cfg.LogLevel)

	app, err := New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("start %s backend: %w", cfg.Backend, err)
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}()

	switch c := cmd.(type) {
	case *RunCommand:
		return app.Run(ctx)
	case *MigrateCommand:
		if c.Dataset == "" {
			return app.MigrateAll(ctx, c.Target)
		}
		_, err := app.Migrate(ctx, c.Dataset, c.Target)
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd.Name())
	}
}
