package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-omegaloops/internal/models"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrSuperseded is returned by a Refresh whose result was discarded
	// because a newer Refresh started before it finished.
	ErrSuperseded = errors.New("catalog refresh superseded")
	// ErrClosed is returned by Refresh after Close.
	ErrClosed = errors.New("catalog syncer closed")
)

// Fetcher produces a complete catalog. *Catalog satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]models.CatalogItem, error)
}

// Snapshot is one complete catalog build.
type Snapshot struct {
	Items      []models.CatalogItem
	Generation uint64
	FetchedAt  time.Time
}

// Syncer holds the latest catalog snapshot. Each Refresh replaces it
// wholesale; only the most recently started Refresh may publish.
type Syncer struct {
	fetcher Fetcher

	mu         sync.Mutex
	generation uint64
	current    Snapshot
	closed     bool
}

// NewSyncer creates a Syncer with an empty snapshot.
func NewSyncer(f Fetcher) *Syncer {
	return &Syncer{fetcher: f}
}

// Refresh fetches a new catalog and publishes it. On error the previous
// snapshot stays in place.
func (s *Syncer) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	items, err := s.fetcher.FetchAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return Snapshot{}, ErrClosed
	case gen != s.generation:
		log.WithField("generation", gen).Debug("Discarding superseded catalog refresh")
		return Snapshot{}, ErrSuperseded
	case err != nil:
		return Snapshot{}, err
	}
	s.current = Snapshot{Items: items, Generation: gen, FetchedAt: time.Now()}
	return s.current, nil
}

// Current returns the last published snapshot.
func (s *Syncer) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close stops publishing. Refreshes still in flight are discarded.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
