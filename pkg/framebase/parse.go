package framebase

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/framebase/framebase/pkg/store"
)

// Config carries everything the app needs to run. Every field has a flag
// and an environment default, so containers configure it without wrapper
// scripts.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// Backend selects the store: memory, surreal or mongo.
	Backend string

	// MediaRoot is the directory media is served from. Empty disables
	// the media endpoint.
	MediaRoot string

	LogLevel string

	// FrameCounts enables frame counting when summaries are rebuilt on
	// downgrade.
	FrameCounts bool

	// BatchSize bounds per-sample updates per bulk write during
	// migrations.
	BatchSize int

	// LeaseTTL is how long a migration holds its dataset lease.
	LeaseTTL time.Duration

	SurrealURL       string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUsername  string
	SurrealPassword  string

	MongoURI      string
	MongoDatabase string
}

// Command is a parsed subcommand.
type Command interface {
	Name() string
}

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (*RunCommand) Name() string { return "run" }

// MigrateCommand migrates one dataset, or every dataset when none is
// named.
type MigrateCommand struct {
	// Dataset names the dataset to migrate. Empty means all.
	Dataset string

	// Target is the schema version to reach. Negative means the latest
	// registered version.
	Target int
}

func (*MigrateCommand) Name() string { return "migrate" }

// Parse reads flags, environment defaults and the trailing subcommand.
// No subcommand means run.
func Parse(args []string) (Command, *Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("framebase", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", getEnv("FRAMEBASE_ADDR", ":5151"), "HTTP listen address")
	fs.StringVar(&cfg.Backend, "backend", getEnv("FRAMEBASE_BACKEND", "memory"), "store backend: memory, surreal or mongo")
	fs.StringVar(&cfg.MediaRoot, "media-root", getEnv("FRAMEBASE_MEDIA_ROOT", ""), "directory media is served from, empty disables /media")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("FRAMEBASE_LOG_LEVEL", "info"), "log level")
	fs.BoolVar(&cfg.FrameCounts, "frame-counts", getEnvBool("FRAMEBASE_FRAME_COUNTS", false), "count frames when rebuilding summaries on downgrade")
	fs.IntVar(&cfg.BatchSize, "batch-size", getEnvInt("FRAMEBASE_BATCH_SIZE", store.DefaultBatchSize), "updates per bulk write during migrations")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", getEnvDuration("FRAMEBASE_LEASE_TTL", 5*time.Minute), "migration lease duration")

	fs.StringVar(&cfg.SurrealURL, "surreal-url", getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"), "SurrealDB endpoint")
	fs.StringVar(&cfg.SurrealNamespace, "surreal-namespace", getEnv("SURREALDB_NAMESPACE", "framebase"), "SurrealDB namespace")
	fs.StringVar(&cfg.SurrealDatabase, "surreal-database", getEnv("SURREALDB_DATABASE", "framebase"), "SurrealDB database")
	fs.StringVar(&cfg.SurrealUsername, "surreal-user", getEnv("SURREALDB_USER", ""), "SurrealDB user")
	fs.StringVar(&cfg.SurrealPassword, "surreal-pass", getEnv("SURREALDB_PASS", ""), "SurrealDB password")

	fs.StringVar(&cfg.MongoURI, "mongo-uri", getEnv("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	fs.StringVar(&cfg.MongoDatabase, "mongo-database", getEnv("MONGODB_DATABASE", "framebase"), "MongoDB database")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return &RunCommand{}, cfg, nil
	}

	switch rest[0] {
	case "run":
		return &RunCommand{}, cfg, nil
	case "migrate":
		cmd := &MigrateCommand{}
		sub := flag.NewFlagSet("framebase migrate", flag.ContinueOnError)
		sub.StringVar(&cmd.Dataset, "dataset", "", "dataset to migrate, empty for all")
		sub.IntVar(&cmd.Target, "target", -1, "target schema version, negative for latest")
		if err := sub.Parse(rest[1:]); err != nil {
			return nil, nil, err
		}
		return cmd, cfg, nil
	default:
		return nil, nil, fmt.Errorf("unknown command %q", rest[0])
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
