package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/input"
	"trainingreg/internal/ports/output"
	"trainingreg/internal/tracing"
	"trainingreg/pkg/tz"
)

var _ input.TrainingUseCase = (*TrainingService)(nil)

type TrainingService struct {
	store         output.Store
	registrations *RegistrationService
	tracer        trace.Tracer
}

// NewTrainingService creates a TrainingService. Capacity changes and deletes
// go through registrations so they share its per-training locks.
func NewTrainingService(store output.Store, registrations *RegistrationService) *TrainingService {
	return &TrainingService{
		store:         store,
		registrations: registrations,
		tracer:        tracing.Tracer("trainingreg/application"),
	}
}

func (s *TrainingService) CreateTraining(ctx context.Context, in input.NewTraining) (*entities.Training, error) {
	ctx, span := s.tracer.Start(ctx, "training.create")
	defer span.End()

	key := strings.TrimSpace(in.Key)
	displayName := strings.TrimSpace(in.DisplayName)
	if key == "" || displayName == "" {
		return nil, tracing.Fail(span, fmt.Errorf("%w: key and display name are required", domain.ErrInvalidInput))
	}
	if in.OpensAt.IsZero() {
		return nil, tracing.Fail(span, fmt.Errorf("%w: opening time is required", domain.ErrInvalidInput))
	}
	capacity := in.Capacity
	if capacity == 0 {
		capacity = entities.DefaultCapacity
	}
	if capacity < 1 {
		return nil, tracing.Fail(span, domain.ErrInvalidCapacity)
	}

	if _, err := s.store.GetTrainingByKey(ctx, key); err == nil {
		return nil, tracing.Fail(span, domain.ErrTrainingKeyExists)
	} else if !errors.Is(err, domain.ErrTrainingNotFound) {
		return nil, tracing.Fail(span, fmt.Errorf("get training by key: %w", err))
	}

	training := &entities.Training{
		Key:         key,
		DisplayName: displayName,
		Capacity:    capacity,
		OpensAt:     in.OpensAt,
	}
	if err := s.store.InsertTraining(ctx, training); err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.Int64(tracing.AttrTrainingID, int64(training.ID)))
	s.registrations.onChange()
	return training, nil
}

func (s *TrainingService) DeleteTraining(ctx context.Context, id uint) error {
	ctx, span := s.tracer.Start(ctx, "training.delete",
		trace.WithAttributes(attribute.Int64(tracing.AttrTrainingID, int64(id))))
	defer span.End()

	err := s.registrations.locked(ctx, id, func(tx output.Store) error {
		return tx.DeleteTraining(ctx, id)
	})
	if err != nil {
		return tracing.Fail(span, err)
	}
	s.registrations.onChange()
	return nil
}

// UpdateCapacity sets a new seat limit and returns the registrations promoted
// from the waitlist to fill it.
func (s *TrainingService) UpdateCapacity(ctx context.Context, id uint, capacity int) ([]entities.Registration, error) {
	return s.registrations.resize(ctx, id, capacity)
}

func (s *TrainingService) TrainingDetail(ctx context.Context, id uint) (*input.TrainingDetail, error) {
	training, err := s.store.GetTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	regs, err := s.store.ListRegistrations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	detail := &input.TrainingDetail{
		Training:     *training,
		Participants: make([]entities.Registration, 0, len(regs)),
		Waitlist:     make([]entities.Registration, 0),
	}
	for _, r := range regs {
		if r.Status.Waitlisted() {
			detail.Waitlist = append(detail.Waitlist, r)
		} else {
			detail.Participants = append(detail.Participants, r)
		}
	}
	return detail, nil
}

// SeedDefaults creates the demo trainings when the store holds none and
// returns how many were created.
func (s *TrainingService) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.store.ListTrainings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list trainings: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	defaults := []input.NewTraining{
		{
			Key:         "2025-11-24",
			DisplayName: "Training 1 - 24 Nov 20:00 to 21:30",
			Capacity:    entities.DefaultCapacity,
			OpensAt:     time.Date(2025, 11, 17, 20, 0, 0, 0, tz.Amsterdam),
		},
		{
			Key:         "2025-11-25",
			DisplayName: "Training 2 - 25 Nov 21:00 to 22:30",
			Capacity:    entities.DefaultCapacity,
			OpensAt:     time.Date(2025, 11, 18, 21, 0, 0, 0, tz.Amsterdam),
		},
	}
	for _, in := range defaults {
		if _, err := s.CreateTraining(ctx, in); err != nil {
			return 0, fmt.Errorf("seed %s: %w", in.Key, err)
		}
	}
	return len(defaults), nil
}
