package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miquelpairo/predictionsreport/internal/config"
	"github.com/miquelpairo/predictionsreport/internal/dataprocessing"
)

// StoredDataset is a parsed export held between requests.
type StoredDataset struct {
	ID       string
	Dataset  *dataprocessing.Dataset
	Skipped  []dataprocessing.SkippedWorksheet
	LoadedAt time.Time

	// ExpiresAt is zero when the store has no TTL.
	ExpiresAt time.Time

	seq uint64
}

// DatasetStore holds parsed datasets keyed by ID. Datasets are immutable
// once stored and may be read by any number of requests at once.
type DatasetStore interface {
	Put(ctx context.Context, result *dataprocessing.ParseResult) (StoredDataset, error)
	Get(ctx context.Context, id string) (StoredDataset, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) []StoredDataset
	Len() int
}

// MemoryStore is a bounded in-memory DatasetStore. When full, the oldest
// dataset is evicted to make room. Expired datasets are dropped on access
// and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*StoredDataset
	seq     uint64

	maxDatasets int
	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a store bounded by cfg.MaxDatasets entries, each
// living for cfg.TTL. A zero TTL never expires entries.
func NewMemoryStore(cfg config.StoreConfig, logger *slog.Logger, opts ...StoreOption) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDatasets < 1 {
		cfg.MaxDatasets = config.Default().Store.MaxDatasets
	}

	s := &MemoryStore{
		entries:     make(map[string]*StoredDataset),
		maxDatasets: cfg.MaxDatasets,
		ttl:         cfg.TTL,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "dataset_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a parse result under a fresh ID.
func (s *MemoryStore) Put(ctx context.Context, result *dataprocessing.ParseResult) (StoredDataset, error) {
	if result == nil || result.Dataset == nil {
		return StoredDataset{}, fmt.Errorf("%w: nothing to store", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(ctx, now)
	for len(s.entries) >= s.maxDatasets {
		s.evictOldestLocked(ctx)
	}

	s.seq++
	entry := &StoredDataset{
		ID:       uuid.NewString(),
		Dataset:  result.Dataset,
		Skipped:  result.Skipped,
		LoadedAt: now,
		seq:      s.seq,
	}
	if s.ttl > 0 {
		entry.ExpiresAt = now.Add(s.ttl)
	}
	s.entries[entry.ID] = entry

	s.logger.DebugContext(ctx, "dataset stored",
		slog.String("dataset_id", entry.ID),
		slog.Int("stored", len(s.entries)))
	return *entry, nil
}

// Get returns the dataset stored under id.
func (s *MemoryStore) Get(ctx context.Context, id string) (StoredDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return StoredDataset{}, ErrDatasetNotFound
	}
	if s.expired(entry, s.now()) {
		delete(s.entries, id)
		s.logger.DebugContext(ctx, "dataset expired", slog.String("dataset_id", id))
		return StoredDataset{}, ErrDatasetExpired
	}
	return *entry, nil
}

// Delete removes the dataset stored under id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrDatasetNotFound
	}
	delete(s.entries, id)
	s.logger.DebugContext(ctx, "dataset deleted", slog.String("dataset_id", id))
	return nil
}

// List returns the live datasets, oldest first.
func (s *MemoryStore) List(ctx context.Context) []StoredDataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(ctx, s.now())
	out := make([]StoredDataset, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, *entry)
	}
	slices.SortFunc(out, func(a, b StoredDataset) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of datasets held, expired ones included until
// they are swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired datasets and returns how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(ctx, s.now())
}

// Run sweeps the store every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	if s.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = s.ttl
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.InfoContext(ctx, "expired datasets removed", slog.Int("count", n))
			}
		}
	}
}

func (s *MemoryStore) expired(entry *StoredDataset, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt)
}

func (s *MemoryStore) sweepLocked(ctx context.Context, now time.Time) int {
	removed := 0
	for id, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.DebugContext(ctx, "swept expired datasets", slog.Int("count", removed))
	}
	return removed
}

func (s *MemoryStore) evictOldestLocked(ctx context.Context) {
	var oldest *StoredDataset
	for _, entry := range s.entries {
		if oldest == nil || entry.seq < oldest.seq {
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}
	delete(s.entries, oldest.ID)
	s.logger.InfoContext(ctx, "dataset evicted",
		slog.String("dataset_id", oldest.ID),
		slog.Int("max_datasets", s.maxDatasets))
}
