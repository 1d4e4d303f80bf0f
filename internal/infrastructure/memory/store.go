// Package memory provides an in-process output.Store. Units of work on the
// same training are serialized by a keyed lock and rolled back through an
// undo log when they fail.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/output"
	"trainingreg/pkg/keylock"
)

var _ output.Store = (*Store)(nil)

type Store struct {
	mu               sync.RWMutex
	trainings        map[uint]entities.Training
	registrations    map[uint]entities.Registration
	nextTrainingID   uint
	nextRegistration uint

	locks keylock.Table[uint]
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		trainings:     make(map[uint]entities.Training),
		registrations: make(map[uint]entities.Registration),
		now:           time.Now,
	}
}

func (s *Store) WithinTraining(ctx context.Context, trainingID uint, fn func(tx output.Store) error) error {
	unlock := s.locks.Lock(trainingID)
	defer unlock()

	if _, err := s.GetTraining(ctx, trainingID); err != nil {
		return err
	}
	u := &unitOfWork{Store: s}
	if err := fn(u); err != nil {
		u.rollback()
		return err
	}
	return nil
}

func (s *Store) GetTraining(_ context.Context, id uint) (*entities.Training, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trainings[id]
	if !ok {
		return nil, domain.ErrTrainingNotFound
	}
	return &t, nil
}

func (s *Store) GetTrainingByKey(_ context.Context, key string) (*entities.Training, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.trainings {
		if t.Key == key {
			return &t, nil
		}
	}
	return nil, domain.ErrTrainingNotFound
}

func (s *Store) ListTrainings(_ context.Context) ([]entities.Training, error) {
	s.mu.RLock()
	out := make([]entities.Training, 0, len(s.trainings))
	for _, t := range s.trainings {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) InsertTraining(_ context.Context, training *entities.Training) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trainings {
		if t.Key == training.Key {
			return domain.ErrTrainingKeyExists
		}
	}
	s.nextTrainingID++
	training.ID = s.nextTrainingID
	training.CreatedAt = s.now()
	s.trainings[training.ID] = *training
	return nil
}

func (s *Store) UpdateCapacity(_ context.Context, id uint, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trainings[id]
	if !ok {
		return domain.ErrTrainingNotFound
	}
	t.Capacity = capacity
	s.trainings[id] = t
	return nil
}

func (s *Store) DeleteTraining(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trainings[id]; !ok {
		return domain.ErrTrainingNotFound
	}
	for rid, r := range s.registrations {
		if r.TrainingID == id {
			delete(s.registrations, rid)
		}
	}
	delete(s.trainings, id)
	return nil
}

func (s *Store) GetRegistration(_ context.Context, id uint) (*entities.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return &r, nil
}

func (s *Store) GetRegistrationByCancelToken(_ context.Context, token string) (*entities.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.registrations {
		if r.CancelToken == token {
			return &r, nil
		}
	}
	return nil, domain.ErrRegistrationNotFound
}

func (s *Store) FindRegistration(_ context.Context, trainingID uint, email string) (*entities.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.registrations {
		if r.TrainingID == trainingID && r.Email == email {
			return &r, nil
		}
	}
	return nil, domain.ErrRegistrationNotFound
}

func (s *Store) ListRegistrations(_ context.Context, trainingID uint) ([]entities.Registration, error) {
	s.mu.RLock()
	out := make([]entities.Registration, 0)
	for _, r := range s.registrations {
		if r.TrainingID == trainingID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountRegistrations(_ context.Context, trainingID uint, status domain.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.registrations {
		if r.TrainingID == trainingID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) EarliestWaitlisted(_ context.Context, trainingID uint) (*entities.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earliest *entities.Registration
	for _, r := range s.registrations {
		if r.TrainingID != trainingID || !r.Status.Waitlisted() {
			continue
		}
		if earliest == nil || r.ID < earliest.ID {
			r := r
			earliest = &r
		}
	}
	if earliest == nil {
		return nil, domain.ErrWaitlistEmpty
	}
	return earliest, nil
}

func (s *Store) InsertRegistration(_ context.Context, registration *entities.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trainings[registration.TrainingID]; !ok {
		return domain.ErrTrainingNotFound
	}
	for _, r := range s.registrations {
		if r.TrainingID == registration.TrainingID && r.Email == registration.Email {
			return domain.ErrDuplicateRegistration
		}
	}
	s.nextRegistration++
	registration.ID = s.nextRegistration
	registration.CreatedAt = s.now()
	s.registrations[registration.ID] = *registration
	return nil
}

func (s *Store) DeleteRegistration(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; !ok {
		return domain.ErrRegistrationNotFound
	}
	delete(s.registrations, id)
	return nil
}

func (s *Store) Promote(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	status, err := r.Status.Promote()
	if err != nil {
		return err
	}
	r.Status = status
	s.registrations[id] = r
	return nil
}

// restore runs fn with the write lock held. Only rollbacks use it.
func (s *Store) restore(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
