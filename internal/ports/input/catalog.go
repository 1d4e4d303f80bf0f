package input

import (
	"context"
	"time"
)

// TrainingView is the display projection of a training.
type TrainingView struct {
	ID             uint      `json:"id"`
	Key            string    `json:"key"`
	DisplayName    string    `json:"display_name"`
	OpensAt        time.Time `json:"opens_at"`
	Open           bool      `json:"open"`
	Full           bool      `json:"full"`
	Capacity       int       `json:"capacity"`
	ConfirmedCount int       `json:"confirmed_count"`
	Available      int       `json:"available"`
	WaitlistLength int       `json:"waitlist_length"`
	Participants   []string  `json:"participants"`
}

type CatalogUseCase interface {
	// ListTrainings returns one view per training ordered by key.
	ListTrainings(ctx context.Context) ([]TrainingView, error)
}
