// Package memory provides an in-memory Store for tests and local
// experimentation. All methods are safe for concurrent use and iteration
// order is deterministic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framebase/framebase/pkg/models"
	"github.com/framebase/framebase/pkg/store"
)

type lease struct {
	holder  string
	expires time.Time
}

// Store keeps the catalog, collections and leases in maps guarded by one
// mutex. Documents and descriptors are cloned on the way in and out so
// callers can never alias stored state.
type Store struct {
	mu       sync.Mutex
	datasets map[string]*models.DatasetDescriptor
	colls    map[string]map[string]models.Document
	leases   map[string]lease

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		datasets: make(map[string]*models.DatasetDescriptor),
		colls:    make(map[string]map[string]models.Document),
		leases:   make(map[string]lease),
		now:      time.Now,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[d.Name]; ok {
		return store.ErrDatasetExists
	}
	s.datasets[d.Name] = d.Clone()
	return nil
}

func (s *Store) GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.datasets[name]
	if !ok {
		return nil, store.ErrDatasetNotFound
	}
	return d.Clone(), nil
}

func (s *Store) PutDataset(ctx context.Context, d *models.DatasetDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[d.Name] = d.Clone()
	return nil
}

func (s *Store) ListDatasets(ctx context.Context) ([]*models.DatasetDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*models.DatasetDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, s.datasets[name].Clone())
	}
	return out, nil
}

func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.datasets[name]
	if !ok {
		return store.ErrDatasetNotFound
	}
	delete(s.colls, d.SampleCollectionName)
	if d.FrameCollectionName != "" {
		delete(s.colls, d.FrameCollectionName)
	}
	delete(s.datasets, name)
	return nil
}

func (s *Store) InsertDocuments(ctx context.Context, collection string, docs []models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.colls[collection]
	if coll == nil {
		coll = make(map[string]models.Document)
		s.colls[collection] = coll
	}
	for _, doc := range docs {
		c := doc.Clone()
		id, ok := c.ID()
		if !ok {
			id = uuid.NewString()
			c["id"] = id
		}
		coll[id] = c
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.sorted(collection)
	if offset > len(docs) {
		offset = len(docs)
	}
	docs = docs[offset:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Clone())
	}
	return out, nil
}

func (s *Store) CountDocuments(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.colls[collection]), nil
}

func (s *Store) RemoveField(ctx context.Context, collection, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.colls[collection] {
		delete(doc, field)
	}
	return nil
}

func (s *Store) BulkWrite(ctx context.Context, collection string, ops []store.Update) (*store.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.colls[collection]
	res := &store.BulkResult{}
	for i, op := range ops {
		doc, ok := coll[op.ID]
		if !ok {
			res.Failed = append(res.Failed, store.FailedUpdate{
				Index:  i,
				ID:     op.ID,
				Reason: "document not found",
			})
			continue
		}
		set := models.Document(op.Set).Clone()
		for k, v := range set {
			doc[k] = v
		}
		for _, k := range op.Unset {
			delete(doc, k)
		}
		res.Applied++
	}
	return res, nil
}

func (s *Store) FirstFrames(ctx context.Context, collection string) (store.FrameCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firsts []models.Document
	for _, doc := range s.colls[collection] {
		if n, ok := models.FrameNumber(doc); ok && n == 1 {
			firsts = append(firsts, doc.Clone())
		}
	}
	sort.Slice(firsts, func(i, j int) bool {
		ri, _ := models.SampleRef(firsts[i])
		rj, _ := models.SampleRef(firsts[j])
		if ri != rj {
			return ri < rj
		}
		ii, _ := firsts[i].ID()
		ij, _ := firsts[j].ID()
		return ii < ij
	})
	return store.NewSliceCursor(firsts), nil
}

func (s *Store) FrameCounts(ctx context.Context, collection string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, doc := range s.colls[collection] {
		if ref, ok := models.SampleRef(doc); ok {
			counts[ref]++
		}
	}
	return counts, nil
}

func (s *Store) AcquireLease(ctx context.Context, dataset, holder string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if l, ok := s.leases[dataset]; ok && l.holder != holder && now.Before(l.expires) {
		return false, nil
	}
	s.leases[dataset] = lease{holder: holder, expires: now.Add(ttl)}
	return true, nil
}

func (s *Store) ReleaseLease(ctx context.Context, dataset, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leases[dataset]; ok && l.holder == holder {
		delete(s.leases, dataset)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

// sorted returns the collection's documents ordered by id. Callers hold
// the mutex.
func (s *Store) sorted(collection string) []models.Document {
	coll := s.colls[collection]
	docs := make([]models.Document, 0, len(coll))
	for _, doc := range coll {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		ii, _ := docs[i].ID()
		ij, _ := docs[j].ID()
		return ii < ij
	})
	return docs
}
