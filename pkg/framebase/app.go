// Package framebase wires the stores, the migration runner and the HTTP
// surface into one application.
package framebase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/framebase/framebase/pkg/media"
	"github.com/framebase/framebase/pkg/migrate"
	"github.com/framebase/framebase/pkg/migrate/revisions"
	"github.com/framebase/framebase/pkg/state"
	"github.com/framebase/framebase/pkg/store"
	"github.com/framebase/framebase/pkg/store/memory"
	"github.com/framebase/framebase/pkg/store/mongo"
	"github.com/framebase/framebase/pkg/store/surreal"
)

const shutdownTimeout = 5 * time.Second

// App owns the store, the revision registry and the HTTP handlers.
type App struct {
	cfg      *Config
	store    store.Store
	registry *migrate.Registry
	runner   *migrate.Runner
	hub      *state.Hub
	media    *media.Handler
	log      zerolog.Logger
}

// New opens the configured backend and assembles the app around it.
func New(ctx context.Context, cfg *Config, log zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := revisions.Registry(revisions.Options{FrameCounts: cfg.FrameCounts})
	runner := migrate.NewRunner(st, registry, log)
	if cfg.BatchSize > 0 {
		runner.BatchSize = cfg.BatchSize
	}

	a := &App{
		cfg:      cfg,
		store:    st,
		registry: registry,
		runner:   runner,
		hub:      state.NewHub(st, log),
		log:      log,
	}
	if cfg.MediaRoot != "" {
		h, err := media.NewHandler(cfg.MediaRoot, log)
		if err != nil {
			st.Close(ctx)
			return nil, err
		}
		a.media = h
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.New(), nil
	case "surreal":
		return surreal.New(ctx, surreal.Config{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNamespace,
			Database:  cfg.SurrealDatabase,
			Username:  cfg.SurrealUsername,
			Password:  cfg.SurrealPassword,
		})
	case "mongo":
		return mongo.New(ctx, mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Handler builds the HTTP routes.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/datasets", a.handleListDatasets).Methods(http.MethodGet)
	api.HandleFunc("/datasets", a.handleCreateDataset).Methods(http.MethodPost)
	api.HandleFunc("/datasets/{name}", a.handleGetDataset).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{name}", a.handleDeleteDataset).Methods(http.MethodDelete)
	api.HandleFunc("/datasets/{name}/samples", a.handleListSamples).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{name}/migrate", a.handleMigrateDataset).Methods(http.MethodPost)

	r.Handle("/state", a.hub)
	if a.media != nil {
		r.Handle("/media", a.media).Methods(http.MethodGet)
	}
	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Addr,
		Handler: a.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()
	a.log.Info().Str("addr", a.cfg.Addr).Str("backend", a.cfg.Backend).Msg("listening")

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Store exposes the backing store, mainly so embedding programs and
// tests can seed or inspect data directly.
func (a *App) Store() store.Store { return a.store }

// Close stops the state hub and releases the store.
func (a *App) Close(ctx context.Context) error {
	a.hub.Close()
	return a.store.Close(ctx)
}
