package memstore

import (
	"context"
	"sync"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	reviews []store.Review
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{nextID: 1}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// InsertReviews appends reviews, assigning sequential IDs.
func (s *Store) InsertReviews(ctx context.Context, reviews []store.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reviews {
		r.ID = s.nextID
		s.nextID++
		s.reviews = append(s.reviews, r)
	}
	return nil
}

// Head returns the first n reviews.
func (s *Store) Head(ctx context.Context, n int) ([]store.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []store.Review{}, nil
	}
	if n > len(s.reviews) {
		n = len(s.reviews)
	}
	out := make([]store.Review, n)
	copy(out, s.reviews[:n])
	return out, nil
}

// ReviewsByTopic returns up to limit reviews with the given dominant topic.
func (s *Store) ReviewsByTopic(ctx context.Context, topic int, limit int) ([]store.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	out := []store.Review{}
	for _, r := range s.reviews {
		if r.DominantTopic != topic {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountByTopic returns review counts per dominant topic.
func (s *Store) CountByTopic(ctx context.Context) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int]int)
	for _, r := range s.reviews {
		counts[r.DominantTopic]++
	}
	return counts, nil
}

// Clear removes every review. IDs keep counting from where they were.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = nil
	return nil
}

// Count returns the number of stored reviews.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews), nil
}
