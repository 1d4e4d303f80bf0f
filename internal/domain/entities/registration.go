package entities

import (
	"time"

	"trainingreg/internal/domain"
)

// Registration is one person's enrollment against a training.
type Registration struct {
	ID          uint
	TrainingID  uint
	Name        string
	Email       string
	Status      domain.Status
	CancelToken string
	CreatedAt   time.Time
}

func (r *Registration) IsConfirmed() bool {
	return r.Status == domain.StatusConfirmed
}
