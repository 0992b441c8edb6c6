// Package surreal implements the Store interface on SurrealDB over
// WebSocket, using the surrealcbor codec so datetimes and record ids
// survive the round trip intact.
//
// Dataset descriptors live in the datasets table keyed by dataset name,
// documents live in one schemaless table per collection, and advisory
// leases live in dataset_leases. Record ids are plain strings on the way
// in and are normalized back to plain strings on the way out.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

const statusOK = "OK"

// Config carries the connection settings for a SurrealDB backend.
type Config struct {
	// URL is the WebSocket endpoint, e.g. "ws://localhost:8000/rpc".
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store is a SurrealDB-backed store.Store.
type Store struct {
	db *surrealdb.DB
}

var _ store.Store = (*Store)(nil)

// New connects to SurrealDB, authenticates when credentials are given and
// selects the configured namespace and database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing surrealdb url: %w", err)
	}

	conf := connection.NewConfig(u)

	// surrealcbor keeps time.Time and record ids intact across the wire.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connecting to surrealdb: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("authenticating to surrealdb: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("selecting namespace %q database %q: %w", cfg.Namespace, cfg.Database, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func (s *Store) CreateDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	query := "CREATE type::thing('datasets', $name) CONTENT $dataset RETURN NONE"
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"name":    d.Name,
		"dataset": d,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return store.ErrDatasetExists
		}
		return fmt.Errorf("creating dataset %q: %w", d.Name, err)
	}
	return nil
}

func (s *Store) GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error) {
	query := "SELECT * FROM type::thing('datasets', $name)"
	res, err := surrealdb.Query[[]models.DatasetDescriptor](ctx, s.db, query, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("reading dataset %q: %w", name, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return nil, store.ErrDatasetNotFound
	}
	d := (*res)[0].Result[0]
	return &d, nil
}

func (s *Store) PutDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	query := "UPSERT type::thing('datasets', $name) CONTENT $dataset RETURN NONE"
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"name":    d.Name,
		"dataset": d,
	})
	if err != nil {
		return fmt.Errorf("storing dataset %q: %w", d.Name, err)
	}
	return nil
}

func (s *Store) ListDatasets(ctx context.Context) ([]*models.DatasetDescriptor, error) {
	query := "SELECT * FROM datasets ORDER BY name"
	res, err := surrealdb.Query[[]models.DatasetDescriptor](ctx, s.db, query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	out := make([]*models.DatasetDescriptor, 0, len((*res)[0].Result))
	for i := range (*res)[0].Result {
		d := (*res)[0].Result[i]
		out = append(out, &d)
	}
	return out, nil
}

func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	d, err := s.GetDataset(ctx, name)
	if err != nil {
		return err
	}

	query := "DELETE type::thing('datasets', $name); DELETE type::table($samples)"
	vars := map[string]any{"name": name, "samples": d.SampleCollectionName}
	if d.FrameCollectionName != "" {
		query += "; DELETE type::table($frames)"
		vars["frames"] = d.FrameCollectionName
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, vars); err != nil {
		return fmt.Errorf("deleting dataset %q: %w", name, err)
	}
	return nil
}

func (s *Store) InsertDocuments(ctx context.Context, collection string, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	query := "INSERT INTO type::table($tb) $docs"
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"tb":   collection,
		"docs": docs,
	})
	if err != nil {
		return fmt.Errorf("inserting %d documents into %q: %w", len(docs), collection, err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]models.Document, error) {
	query := "SELECT * FROM type::table($tb) ORDER BY id"
	vars := map[string]any{"tb": collection}
	if limit > 0 {
		query += " LIMIT $limit"
		vars["limit"] = limit
	}
	if offset > 0 {
		query += " START $offset"
		vars["offset"] = offset
	}
	res, err := surrealdb.Query[[]models.Document](ctx, s.db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("listing documents in %q: %w", collection, err)
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	docs := (*res)[0].Result
	for _, doc := range docs {
		normalizeID(doc)
	}
	return docs, nil
}

func (s *Store) CountDocuments(ctx context.Context, collection string) (int, error) {
	type countResult struct {
		Count int `json:"count"`
	}
	query := "SELECT count() AS count FROM type::table($tb) GROUP ALL"
	res, err := surrealdb.Query[[]countResult](ctx, s.db, query, map[string]any{"tb": collection})
	if err != nil {
		return 0, fmt.Errorf("counting documents in %q: %w", collection, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return 0, nil
	}
	return (*res)[0].Result[0].Count, nil
}

func (s *Store) RemoveField(ctx context.Context, collection, field string) error {
	query, err := removeFieldQuery(field)
	if err != nil {
		return err
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"tb": collection}); err != nil {
		return fmt.Errorf("removing field %q from %q: %w", field, collection, err)
	}
	return nil
}

func (s *Store) BulkWrite(ctx context.Context, collection string, ops []store.Update) (*store.BulkResult, error) {
	if len(ops) == 0 {
		return &store.BulkResult{}, nil
	}
	query, vars, err := bulkUpdateQuery(collection, ops)
	if err != nil {
		return nil, err
	}
	res, err := surrealdb.Query[[]surrealmodels.RecordID](ctx, s.db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("bulk updating %q: %w", collection, err)
	}

	out := &store.BulkResult{}
	for i, op := range ops {
		switch {
		case res == nil || i >= len(*res):
			out.Failed = append(out.Failed, store.FailedUpdate{Index: i, ID: op.ID, Reason: "no result for update"})
		case (*res)[i].Status != statusOK:
			out.Failed = append(out.Failed, store.FailedUpdate{Index: i, ID: op.ID, Reason: "update failed"})
		case len((*res)[i].Result) == 0:
			out.Failed = append(out.Failed, store.FailedUpdate{Index: i, ID: op.ID, Reason: "document not found"})
		default:
			out.Applied++
		}
	}
	return out, nil
}

func (s *Store) FirstFrames(ctx context.Context, collection string) (store.FrameCursor, error) {
	query := "SELECT * FROM type::table($tb) WHERE frame_number = 1 ORDER BY _sample_id, id"
	res, err := surrealdb.Query[[]models.Document](ctx, s.db, query, map[string]any{"tb": collection})
	if err != nil {
		return nil, fmt.Errorf("reading first frames of %q: %w", collection, err)
	}
	var docs []models.Document
	if res != nil && len(*res) > 0 {
		docs = (*res)[0].Result
		for _, doc := range docs {
			normalizeID(doc)
		}
	}
	return store.NewSliceCursor(docs), nil
}

func (s *Store) FrameCounts(ctx context.Context, collection string) (map[string]int, error) {
	type countRow struct {
		Sample string `json:"_sample_id"`
		Count  int    `json:"count"`
	}
	query := "SELECT _sample_id, count() AS count FROM type::table($tb) GROUP BY _sample_id"
	res, err := surrealdb.Query[[]countRow](ctx, s.db, query, map[string]any{"tb": collection})
	if err != nil {
		return nil, fmt.Errorf("counting frames in %q: %w", collection, err)
	}
	counts := make(map[string]int)
	if res != nil && len(*res) > 0 {
		for _, row := range (*res)[0].Result {
			if row.Sample == "" {
				continue
			}
			counts[row.Sample] = row.Count
		}
	}
	return counts, nil
}

func (s *Store) AcquireLease(ctx context.Context, dataset, holder string, ttl time.Duration) (bool, error) {
	_, err := surrealdb.Query[any](ctx, s.db, acquireLeaseQuery, map[string]any{
		"name":    dataset,
		"holder":  holder,
		"expires": time.Now().UTC().Add(ttl),
	})
	if err != nil {
		if strings.Contains(err.Error(), "lease held") {
			return false, nil
		}
		return false, fmt.Errorf("acquiring lease on %q: %w", dataset, err)
	}
	return true, nil
}

func (s *Store) ReleaseLease(ctx context.Context, dataset, holder string) error {
	query := "DELETE type::thing('dataset_leases', $name) WHERE holder = $holder"
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"name":   dataset,
		"holder": holder,
	})
	if err != nil {
		return fmt.Errorf("releasing lease on %q: %w", dataset, err)
	}
	return nil
}

// normalizeID rewrites a decoded record id into the plain string id the
// rest of the system uses.
func normalizeID(doc models.Document) {
	switch rid := doc["id"].(type) {
	case surrealmodels.RecordID:
		doc["id"] = fmt.Sprint(rid.ID)
	case *surrealmodels.RecordID:
		doc["id"] = fmt.Sprint(rid.ID)
	}
}
