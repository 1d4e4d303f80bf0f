package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/input"
)

func TestCreateTraining(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	opens := time.Date(2025, 11, 17, 19, 0, 0, 0, time.UTC)

	tr, err := h.trainings.CreateTraining(ctx, input.NewTraining{Key: " 2025-11-24 ", DisplayName: "Training 1", OpensAt: opens})
	require.NoError(t, err)
	require.NotZero(t, tr.ID)
	require.Equal(t, "2025-11-24", tr.Key)
	require.Equal(t, entities.DefaultCapacity, tr.Capacity)

	_, err = h.trainings.CreateTraining(ctx, input.NewTraining{Key: "2025-11-24", DisplayName: "Again", OpensAt: opens})
	require.ErrorIs(t, err, domain.ErrTrainingKeyExists)

	_, err = h.trainings.CreateTraining(ctx, input.NewTraining{Key: "x", DisplayName: "X", Capacity: -1, OpensAt: opens})
	require.ErrorIs(t, err, domain.ErrInvalidCapacity)

	_, err = h.trainings.CreateTraining(ctx, input.NewTraining{Key: "", DisplayName: "X", OpensAt: opens})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.trainings.CreateTraining(ctx, input.NewTraining{Key: "y", DisplayName: "Y"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteTraining_Cascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	reg, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)

	require.NoError(t, h.trainings.DeleteTraining(ctx, tr.ID))
	_, err = h.store.GetRegistration(ctx, reg.ID)
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)

	require.ErrorIs(t, h.trainings.DeleteTraining(ctx, tr.ID), domain.ErrTrainingNotFound)
	_, err = h.registrations.Cancel(ctx, reg.ID)
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestTrainingDetail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	for _, name := range []string{"a", "b", "c"} {
		_, err := h.registrations.Register(ctx, tr.ID, name, name+"@example.com")
		require.NoError(t, err)
	}

	d, err := h.trainings.TrainingDetail(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, tr.ID, d.Training.ID)
	require.Len(t, d.Participants, 1)
	require.Equal(t, "a@example.com", d.Participants[0].Email)
	require.Len(t, d.Waitlist, 2)
	require.Equal(t, "b@example.com", d.Waitlist[0].Email)
	require.Equal(t, "c@example.com", d.Waitlist[1].Email)

	_, err = h.trainings.TrainingDetail(ctx, 99)
	require.ErrorIs(t, err, domain.ErrTrainingNotFound)
}

func TestSeedDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	n, err := h.trainings.SeedDefaults(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = h.trainings.SeedDefaults(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	list, err := h.store.ListTrainings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "2025-11-24", list[0].Key)
	require.Equal(t, 20, list[0].Capacity)
	require.Equal(t, time.Date(2025, 11, 17, 19, 0, 0, 0, time.UTC), list[0].OpensAt.UTC())
}
