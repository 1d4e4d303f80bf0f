package input

import (
	"context"
	"time"

	"trainingreg/internal/domain/entities"
)

// NewTraining is the admin payload for creating a training.
type NewTraining struct {
	Key         string
	DisplayName string
	Capacity    int
	OpensAt     time.Time
}

// TrainingDetail is the admin view of one training.
type TrainingDetail struct {
	Training     entities.Training
	Participants []entities.Registration
	Waitlist     []entities.Registration
}

type TrainingUseCase interface {
	CreateTraining(ctx context.Context, in NewTraining) (*entities.Training, error)
	DeleteTraining(ctx context.Context, id uint) error
	UpdateCapacity(ctx context.Context, id uint, capacity int) ([]entities.Registration, error)
	TrainingDetail(ctx context.Context, id uint) (*TrainingDetail, error)
	SeedDefaults(ctx context.Context) (int, error)
}
