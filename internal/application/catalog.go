package application

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"trainingreg/internal/ports/input"
	"trainingreg/internal/ports/output"
)

const catalogCacheKey = "trainings"

var _ input.CatalogUseCase = (*CatalogService)(nil)

// CatalogService builds the display projection of all trainings. Views may be
// served from a short-lived cache; every committed mutation drops it.
type CatalogService struct {
	store output.Store
	cache *gocache.Cache
	now   func() time.Time
	// generation is bumped by Invalidate; a projection built across a bump is
	// not cached.
	generation atomic.Uint64
}

// NewCatalogService creates a CatalogService. A ttl <= 0 disables caching.
func NewCatalogService(store output.Store, ttl time.Duration) *CatalogService {
	s := &CatalogService{store: store, now: time.Now}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

func (s *CatalogService) ListTrainings(ctx context.Context) ([]input.TrainingView, error) {
	views, err := s.views(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]input.TrainingView, len(views))
	for i, v := range views {
		v.Open = !now.Before(v.OpensAt)
		v.Participants = slices.Clone(v.Participants)
		out[i] = v
	}
	return out, nil
}

// Invalidate drops the cached projection.
func (s *CatalogService) Invalidate() {
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Delete(catalogCacheKey)
	}
}

func (s *CatalogService) views(ctx context.Context) ([]input.TrainingView, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(catalogCacheKey); ok {
			if views, ok := cached.([]input.TrainingView); ok {
				return views, nil
			}
		}
	}

	generation := s.generation.Load()
	trainings, err := s.store.ListTrainings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trainings: %w", err)
	}
	views := make([]input.TrainingView, 0, len(trainings))
	for _, t := range trainings {
		regs, err := s.store.ListRegistrations(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("list registrations: %w", err)
		}
		v := input.TrainingView{
			ID:           t.ID,
			Key:          t.Key,
			DisplayName:  t.DisplayName,
			OpensAt:      t.OpensAt,
			Capacity:     t.Capacity,
			Participants: make([]string, 0, len(regs)),
		}
		for _, r := range regs {
			if r.Status.Waitlisted() {
				v.WaitlistLength++
				continue
			}
			v.Participants = append(v.Participants, r.Name)
		}
		v.ConfirmedCount = len(v.Participants)
		v.Available = t.Capacity - v.ConfirmedCount
		v.Full = v.ConfirmedCount >= t.Capacity
		views = append(views, v)
	}

	if s.cache != nil && s.generation.Load() == generation {
		s.cache.SetDefault(catalogCacheKey, views)
	}
	return views, nil
}
