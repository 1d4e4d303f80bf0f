package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
)

type trainingRow struct {
	ID          int64              `db:"id"`
	SlotKey     string             `db:"slot_key"`
	DisplayName string             `db:"display_name"`
	Capacity    int32              `db:"capacity"`
	OpensAt     pgtype.Timestamptz `db:"opens_at"`
	CreatedAt   pgtype.Timestamptz `db:"created_at"`
}

type registrationRow struct {
	ID          int64              `db:"id"`
	TrainingID  int64              `db:"training_id"`
	Name        string             `db:"name"`
	Email       string             `db:"email"`
	Status      string             `db:"status"`
	CancelToken string             `db:"cancel_token"`
	CreatedAt   pgtype.Timestamptz `db:"created_at"`
}

// pgtypeTimestamptzToTime returns t.Time when Valid, else zero time.
func pgtypeTimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func trainingToDomain(r trainingRow) entities.Training {
	return entities.Training{
		ID:          uint(r.ID),
		Key:         r.SlotKey,
		DisplayName: r.DisplayName,
		Capacity:    int(r.Capacity),
		OpensAt:     pgtypeTimestamptzToTime(r.OpensAt),
		CreatedAt:   pgtypeTimestamptzToTime(r.CreatedAt),
	}
}

func registrationToDomain(r registrationRow) (entities.Registration, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return entities.Registration{}, err
	}
	return entities.Registration{
		ID:          uint(r.ID),
		TrainingID:  uint(r.TrainingID),
		Name:        r.Name,
		Email:       r.Email,
		Status:      status,
		CancelToken: r.CancelToken,
		CreatedAt:   pgtypeTimestamptzToTime(r.CreatedAt),
	}, nil
}
