package memory

import (
	"context"

	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/output"
)

// unitOfWork is the Store handed to WithinTraining callbacks. Reads go
// straight to the store; every successful write records its inverse.
type unitOfWork struct {
	*Store
	undo []func()
}

func (u *unitOfWork) WithinTraining(ctx context.Context, trainingID uint, fn func(tx output.Store) error) error {
	if _, err := u.GetTraining(ctx, trainingID); err != nil {
		return err
	}
	return fn(u)
}

func (u *unitOfWork) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.Store.restore(u.undo[i])
	}
	u.undo = nil
}

func (u *unitOfWork) InsertTraining(ctx context.Context, training *entities.Training) error {
	if err := u.Store.InsertTraining(ctx, training); err != nil {
		return err
	}
	id := training.ID
	u.undo = append(u.undo, func() { delete(u.Store.trainings, id) })
	return nil
}

func (u *unitOfWork) UpdateCapacity(ctx context.Context, id uint, capacity int) error {
	prev, err := u.Store.GetTraining(ctx, id)
	if err != nil {
		return err
	}
	if err := u.Store.UpdateCapacity(ctx, id, capacity); err != nil {
		return err
	}
	old := *prev
	u.undo = append(u.undo, func() { u.Store.trainings[id] = old })
	return nil
}

func (u *unitOfWork) DeleteTraining(ctx context.Context, id uint) error {
	prev, err := u.Store.GetTraining(ctx, id)
	if err != nil {
		return err
	}
	regs, err := u.Store.ListRegistrations(ctx, id)
	if err != nil {
		return err
	}
	if err := u.Store.DeleteTraining(ctx, id); err != nil {
		return err
	}
	old := *prev
	u.undo = append(u.undo, func() {
		u.Store.trainings[id] = old
		for _, r := range regs {
			u.Store.registrations[r.ID] = r
		}
	})
	return nil
}

func (u *unitOfWork) InsertRegistration(ctx context.Context, registration *entities.Registration) error {
	if err := u.Store.InsertRegistration(ctx, registration); err != nil {
		return err
	}
	id := registration.ID
	u.undo = append(u.undo, func() { delete(u.Store.registrations, id) })
	return nil
}

func (u *unitOfWork) DeleteRegistration(ctx context.Context, id uint) error {
	prev, err := u.Store.GetRegistration(ctx, id)
	if err != nil {
		return err
	}
	if err := u.Store.DeleteRegistration(ctx, id); err != nil {
		return err
	}
	old := *prev
	u.undo = append(u.undo, func() { u.Store.registrations[id] = old })
	return nil
}

func (u *unitOfWork) Promote(ctx context.Context, id uint) error {
	prev, err := u.Store.GetRegistration(ctx, id)
	if err != nil {
		return err
	}
	if err := u.Store.Promote(ctx, id); err != nil {
		return err
	}
	old := *prev
	u.undo = append(u.undo, func() { u.Store.registrations[id] = old })
	return nil
}
