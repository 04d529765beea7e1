package cache

import (
	"context"
	"time"

	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/report"
)

// Source caches the rows returned by a report.Source, keyed by the query
// parameters. Failed queries are not cached.
type Source struct {
	next  report.Source
	cache *Cache[[]event.Row]
}

// NewSource wraps next with a cache of the given capacity and ttl.
func NewSource(next report.Source, capacity int, ttl time.Duration, now func() time.Time) *Source {
	return &Source{next: next, cache: New[[]event.Row](capacity, ttl, now)}
}

// Rows implements report.Source.
func (s *Source) Rows(ctx context.Context, q report.Query) ([]event.Row, error) {
	key := q.Key()
	if rows, ok := s.cache.Get(key); ok {
		return rows, nil
	}
	rows, err := s.next.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, rows)
	return rows, nil
}

// Purge drops every cached result.
func (s *Source) Purge() {
	s.cache.Purge()
}
