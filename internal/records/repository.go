package records

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jinzhu/copier"

	"platewatch/internal/store"
)

// Repository holds the live record per track key for one scope.
type Repository interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, record Record) error
}

// Upsert applies candidate to repo when it supersedes the stored record and
// reports whether it did. Applying is a full overwrite.
func Upsert(ctx context.Context, repo Repository, candidate Record) (bool, error) {
	if candidate.TrackKey == "" {
		return false, fmt.Errorf("upsert: track key required")
	}
	existing, err := repo.Get(ctx, candidate.TrackKey)
	if err != nil {
		return false, fmt.Errorf("upsert %s: load: %w", candidate.TrackKey, err)
	}
	if !Supersedes(existing, candidate) {
		return false, nil
	}
	if err := repo.Put(ctx, candidate); err != nil {
		return false, fmt.Errorf("upsert %s: store: %w", candidate.TrackKey, err)
	}
	return true, nil
}

// MemoryRepository is an in-process Repository scoped to one chunk run.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

// Get implements Repository.
func (m *MemoryRepository) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put implements Repository.
func (m *MemoryRepository) Put(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.TrackKey] = record
	return nil
}

// Len returns the number of live records.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Records returns every record ordered by timestamp, then key.
func (m *MemoryRepository) Records() []Record {
	m.mu.Lock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	m.mu.Unlock()
	SortByTimestamp(out)
	return out
}

// SortByTimestamp orders records by timestamp, breaking ties by key.
func SortByTimestamp(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp < recs[j].Timestamp
		}
		return recs[i].TrackKey < recs[j].TrackKey
	})
}

// StoreRepository persists records for one video in the detections table.
type StoreRepository struct {
	store   *store.Store
	videoID int64
}

// NewStoreRepository scopes repository operations to videoID.
func NewStoreRepository(st *store.Store, videoID int64) *StoreRepository {
	return &StoreRepository{store: st, videoID: videoID}
}

// Get implements Repository.
func (r *StoreRepository) Get(ctx context.Context, key string) (*Record, error) {
	det, err := r.store.GetDetection(ctx, r.videoID, key)
	if err != nil || det == nil {
		return nil, err
	}
	rec, err := FromDetection(det)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put implements Repository. The record's video id is forced to the
// repository scope.
func (r *StoreRepository) Put(ctx context.Context, record Record) error {
	record.VideoID = r.videoID
	det, err := ToDetection(record)
	if err != nil {
		return err
	}
	return r.store.PutDetection(ctx, det)
}

// List returns every persisted record of the video in timestamp order.
func (r *StoreRepository) List(ctx context.Context) ([]Record, error) {
	dets, err := r.store.SearchDetections(ctx, store.DetectionFilter{VideoID: r.videoID})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(dets))
	for _, det := range dets {
		rec, err := FromDetection(det)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	SortByTimestamp(out)
	return out, nil
}

// ToDetection converts a record to its persisted form.
func ToDetection(record Record) (*store.Detection, error) {
	var det store.Detection
	if err := copier.Copy(&det, &record); err != nil {
		return nil, fmt.Errorf("convert record %s: %w", record.TrackKey, err)
	}
	return &det, nil
}

// FromDetection converts a persisted detection to a record.
func FromDetection(det *store.Detection) (Record, error) {
	var rec Record
	if err := copier.Copy(&rec, det); err != nil {
		return Record{}, fmt.Errorf("convert detection %s: %w", det.TrackKey, err)
	}
	return rec, nil
}
