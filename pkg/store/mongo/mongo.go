// Package mongo implements the Store interface on MongoDB. It is the
// backend of choice when datasets outgrow a single node, and it maps the
// persisted layouts one to one: descriptors in the datasets collection,
// documents in one collection per dataset, leases in dataset_leases.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

const (
	datasetsCollection = "datasets"
	leasesCollection   = "dataset_leases"
)

// Config carries the connection settings for a MongoDB backend.
type Config struct {
	// URI is the connection string, e.g. "mongodb://localhost:27017".
	URI      string
	Database string
}

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// New connects to MongoDB, verifies the connection and ensures the unique
// index on dataset names.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.Database)}

	_, err = s.db.Collection(datasetsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring dataset name index: %w", err)
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	_, err := s.db.Collection(datasetsCollection).InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDatasetExists
	}
	if err != nil {
		return fmt.Errorf("creating dataset %q: %w", d.Name, err)
	}
	return nil
}

func (s *Store) GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error) {
	var d models.DatasetDescriptor
	err := s.db.Collection(datasetsCollection).FindOne(ctx, bson.M{"name": name}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading dataset %q: %w", name, err)
	}
	return &d, nil
}

func (s *Store) PutDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	_, err := s.db.Collection(datasetsCollection).ReplaceOne(ctx,
		bson.M{"name": d.Name}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("storing dataset %q: %w", d.Name, err)
	}
	return nil
}

func (s *Store) ListDatasets(ctx context.Context) ([]*models.DatasetDescriptor, error) {
	cur, err := s.db.Collection(datasetsCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	var all []*models.DatasetDescriptor
	if err := cur.All(ctx, &all); err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	return all, nil
}

func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	d, err := s.GetDataset(ctx, name)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(datasetsCollection).DeleteOne(ctx, bson.M{"name": name}); err != nil {
		return fmt.Errorf("deleting dataset %q: %w", name, err)
	}
	if err := s.db.Collection(d.SampleCollectionName).Drop(ctx); err != nil {
		return fmt.Errorf("dropping collection %q: %w", d.SampleCollectionName, err)
	}
	if d.FrameCollectionName != "" {
		if err := s.db.Collection(d.FrameCollectionName).Drop(ctx); err != nil {
			return fmt.Errorf("dropping collection %q: %w", d.FrameCollectionName, err)
		}
	}
	return nil
}

func (s *Store) InsertDocuments(ctx context.Context, collection string, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]any, len(docs))
	for i, doc := range docs {
		rows[i] = toMongo(doc)
	}
	if _, err := s.db.Collection(collection).InsertMany(ctx, rows); err != nil {
		return fmt.Errorf("inserting %d documents into %q: %w", len(docs), collection, err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if offset > 0 {
		opts = opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing documents in %q: %w", collection, err)
	}
	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("listing documents in %q: %w", collection, err)
	}
	docs := make([]models.Document, len(rows))
	for i, row := range rows {
		docs[i] = fromMongo(row)
	}
	return docs, nil
}

func (s *Store) CountDocuments(ctx context.Context, collection string) (int, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting documents in %q: %w", collection, err)
	}
	return int(n), nil
}

func (s *Store) RemoveField(ctx context.Context, collection, field string) error {
	_, err := s.db.Collection(collection).UpdateMany(ctx,
		bson.M{}, bson.M{"$unset": bson.M{field: ""}})
	if err != nil {
		return fmt.Errorf("removing field %q from %q: %w", field, collection, err)
	}
	return nil
}

func (s *Store) BulkWrite(ctx context.Context, collection string, ops []store.Update) (*store.BulkResult, error) {
	res := &store.BulkResult{}
	if len(ops) == 0 {
		return res, nil
	}
	coll := s.db.Collection(collection)

	// A per-document update that matches nothing is not an error to the
	// server, so missing documents are detected up front. Migrations run
	// under the dataset lease, so nothing disappears in between.
	exists, err := s.existingIDs(ctx, coll, ops)
	if err != nil {
		return nil, err
	}

	writes := make([]mongo.WriteModel, 0, len(ops))
	// opIndex maps each write model back to its position in ops.
	opIndex := make([]int, 0, len(ops))
	for i, op := range ops {
		if !exists[op.ID] {
			res.Failed = append(res.Failed, store.FailedUpdate{Index: i, ID: op.ID, Reason: "document not found"})
			continue
		}
		update := buildUpdate(op)
		if update == nil {
			// Nothing to set or unset applies trivially.
			res.Applied++
			continue
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": op.ID}).
			SetUpdate(update))
		opIndex = append(opIndex, i)
	}
	if len(writes) == 0 {
		return res, nil
	}

	_, err = coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) {
			return nil, fmt.Errorf("bulk updating %q: %w", collection, err)
		}
		failed := make(map[int]bool, len(bwe.WriteErrors))
		for _, we := range bwe.WriteErrors {
			if we.Index < 0 || we.Index >= len(opIndex) {
				continue
			}
			i := opIndex[we.Index]
			failed[we.Index] = true
			res.Failed = append(res.Failed, store.FailedUpdate{Index: i, ID: ops[i].ID, Reason: we.Message})
		}
		res.Applied += len(writes) - len(failed)
		return res, nil
	}
	res.Applied += len(writes)
	return res, nil
}

func (s *Store) existingIDs(ctx context.Context, coll *mongo.Collection, ops []store.Update) (map[string]bool, error) {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	cur, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("checking update targets: %w", err)
	}
	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("checking update targets: %w", err)
	}
	exists := make(map[string]bool, len(rows))
	for _, row := range rows {
		if id, ok := row["_id"].(string); ok {
			exists[id] = true
		}
	}
	return exists, nil
}

func (s *Store) FirstFrames(ctx context.Context, collection string) (store.FrameCursor, error) {
	cur, err := s.db.Collection(collection).Find(ctx,
		bson.M{models.KeyFrameNumber: 1},
		options.Find().SetSort(bson.D{{Key: models.KeySampleRef, Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("reading first frames of %q: %w", collection, err)
	}
	return &frameCursor{cur: cur}, nil
}

func (s *Store) FrameCounts(ctx context.Context, collection string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{models.KeySampleRef: bson.M{"$exists": true}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + models.KeySampleRef},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("counting frames in %q: %w", collection, err)
	}
	var rows []struct {
		Sample string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("counting frames in %q: %w", collection, err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Sample == "" {
			continue
		}
		counts[row.Sample] = row.Count
	}
	return counts, nil
}

func (s *Store) AcquireLease(ctx context.Context, dataset, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id": dataset,
		"$or": bson.A{
			bson.M{"holder": holder},
			bson.M{"expires": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{"holder": holder, "expires": now.Add(ttl)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc bson.M
	err := s.db.Collection(leasesCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// The lease document exists and the filter excluded it, so some
		// other holder owns an unexpired lease.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring lease on %q: %w", dataset, err)
	}
	return true, nil
}

func (s *Store) ReleaseLease(ctx context.Context, dataset, holder string) error {
	_, err := s.db.Collection(leasesCollection).DeleteOne(ctx,
		bson.M{"_id": dataset, "holder": holder})
	if err != nil {
		return fmt.Errorf("releasing lease on %q: %w", dataset, err)
	}
	return nil
}

// frameCursor adapts a driver cursor to store.FrameCursor.
type frameCursor struct {
	cur *mongo.Cursor
}

func (c *frameCursor) Next(ctx context.Context) (models.Document, bool, error) {
	if !c.cur.Next(ctx) {
		if err := c.cur.Err(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	var row bson.M
	if err := c.cur.Decode(&row); err != nil {
		return nil, false, err
	}
	return fromMongo(row), true, nil
}

func (c *frameCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// buildUpdate turns an Update into a MongoDB update document, or nil when
// the op carries nothing to do.
func buildUpdate(op store.Update) bson.M {
	update := bson.M{}
	if len(op.Set) > 0 {
		update["$set"] = bson.M(op.Set)
	}
	if len(op.Unset) > 0 {
		unset := bson.M{}
		for _, k := range op.Unset {
			unset[k] = ""
		}
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}
	return update
}

// toMongo renames the id key to _id. Documents without an id are inserted
// as-is and the server assigns one.
func toMongo(doc models.Document) bson.M {
	row := make(bson.M, len(doc))
	for k, v := range doc {
		if k == "id" {
			row["_id"] = v
			continue
		}
		row[k] = v
	}
	return row
}

// fromMongo renames _id back to id, flattening ObjectIDs to hex strings.
func fromMongo(row bson.M) models.Document {
	doc := make(models.Document, len(row))
	for k, v := range row {
		if k != "_id" {
			doc[k] = v
			continue
		}
		switch id := v.(type) {
		case string:
			doc["id"] = id
		case bson.ObjectID:
			doc["id"] = id.Hex()
		default:
			doc["id"] = fmt.Sprint(id)
		}
	}
	return doc
}
