package output

import (
	"context"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
)

// TrainingRepository persists trainings.
type TrainingRepository interface {
	GetTraining(ctx context.Context, id uint) (*entities.Training, error)
	GetTrainingByKey(ctx context.Context, key string) (*entities.Training, error)
	// ListTrainings returns every training ordered by key.
	ListTrainings(ctx context.Context) ([]entities.Training, error)
	InsertTraining(ctx context.Context, training *entities.Training) error
	UpdateCapacity(ctx context.Context, id uint, capacity int) error
	// DeleteTraining removes the training and all of its registrations.
	DeleteTraining(ctx context.Context, id uint) error
}

// RegistrationRepository persists registrations.
type RegistrationRepository interface {
	GetRegistration(ctx context.Context, id uint) (*entities.Registration, error)
	GetRegistrationByCancelToken(ctx context.Context, token string) (*entities.Registration, error)
	FindRegistration(ctx context.Context, trainingID uint, email string) (*entities.Registration, error)
	// ListRegistrations returns the registrations of a training by ascending id.
	ListRegistrations(ctx context.Context, trainingID uint) ([]entities.Registration, error)
	CountRegistrations(ctx context.Context, trainingID uint, status domain.Status) (int, error)
	// EarliestWaitlisted returns the waitlisted registration with the smallest id,
	// or domain.ErrWaitlistEmpty.
	EarliestWaitlisted(ctx context.Context, trainingID uint) (*entities.Registration, error)
	InsertRegistration(ctx context.Context, registration *entities.Registration) error
	DeleteRegistration(ctx context.Context, id uint) error
	// Promote flips a waitlisted registration to confirmed. It fails with
	// domain.ErrNotWaitlisted for any other registration.
	Promote(ctx context.Context, id uint) error
}

// Store is the persistence boundary of the capacity manager.
type Store interface {
	TrainingRepository
	RegistrationRepository

	// WithinTraining runs fn as one atomic unit with respect to every other
	// WithinTraining call on the same training. The Store handed to fn is bound
	// to that unit; an error from fn discards all of its writes.
	// It fails with domain.ErrTrainingNotFound when the training does not exist.
	WithinTraining(ctx context.Context, trainingID uint, fn func(tx Store) error) error
}
