package input

import (
	"context"

	"trainingreg/internal/domain/entities"
)

// CancelResult describes a removed registration and the entrant promoted in
// its place, if any.
type CancelResult struct {
	Cancelled entities.Registration
	Promoted  *entities.Registration
}

type RegistrationUseCase interface {
	Register(ctx context.Context, trainingID uint, name, email string) (*entities.Registration, error)
	Cancel(ctx context.Context, registrationID uint) (*CancelResult, error)
	CancelByToken(ctx context.Context, token string) (*CancelResult, error)
	AdminAddRegistration(ctx context.Context, trainingID uint, name, email string, asWaitlist bool) (*entities.Registration, error)
	AdminKick(ctx context.Context, registrationID uint) (*CancelResult, error)
}
