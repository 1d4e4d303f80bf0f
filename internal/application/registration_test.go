package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
)

func TestRegister_ConfirmsUntilFullThenWaitlists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 2)

	var statuses []domain.Status
	for i := 0; i < 5; i++ {
		reg, err := h.registrations.Register(ctx, tr.ID, fmt.Sprintf("P%d", i), fmt.Sprintf("p%d@example.com", i))
		require.NoError(t, err)
		statuses = append(statuses, reg.Status)
	}
	require.Equal(t, []domain.Status{
		domain.StatusConfirmed, domain.StatusConfirmed,
		domain.StatusWaitlisted, domain.StatusWaitlisted, domain.StatusWaitlisted,
	}, statuses)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 5)
	require.Equal(t, "mail.confirmed.subject", msgs[0].Subject)
	require.Equal(t, "mail.waitlisted.subject", msgs[4].Subject)
	require.Equal(t, "p0@example.com", msgs[0].To)
}

func TestRegister_NormalizesApplicant(t *testing.T) {
	h := newHarness(t)
	tr := h.training(t, "2025-11-24", 2)

	reg, err := h.registrations.Register(context.Background(), tr.ID, "  Ada Lovelace ", " Ada@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", reg.Name)
	require.Equal(t, "ada@example.com", reg.Email)
	require.NotEmpty(t, reg.CancelToken)
}

func TestRegister_InvalidInput(t *testing.T) {
	h := newHarness(t)
	tr := h.training(t, "2025-11-24", 2)

	for _, tc := range []struct{ name, email string }{
		{"", "a@example.com"},
		{"A", ""},
		{"A", "not-an-email"},
		{"A", "Ada <ada@example.com>"},
		{strings.Repeat("n", 101), "a@example.com"},
	} {
		_, err := h.registrations.Register(context.Background(), tr.ID, tc.name, tc.email)
		require.ErrorIs(t, err, domain.ErrInvalidInput, "%q/%q", tc.name, tc.email)
	}
}

func TestRegister_DisplayNameFormCannotTakeSecondSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 2)

	_, err := h.registrations.Register(ctx, tr.ID, "Ada", "ada@example.com")
	require.NoError(t, err)

	_, err = h.registrations.Register(ctx, tr.ID, "Ada", "Ada <ada@example.com>")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.registrations.AdminAddRegistration(ctx, tr.ID, "Ada", "Ada <ada@example.com>", false)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	confirmed, err := h.store.CountRegistrations(ctx, tr.ID, domain.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, 1, confirmed)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ada@example.com", msgs[0].To)
}

func TestRegister_UnknownTraining(t *testing.T) {
	h := newHarness(t)
	_, err := h.registrations.Register(context.Background(), 42, "A", "a@example.com")
	require.ErrorIs(t, err, domain.ErrTrainingNotFound)
	require.Empty(t, h.notifier.messages())
}

func TestRegister_DuplicateRegardlessOfStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	_, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	_, err = h.registrations.Register(ctx, tr.ID, "B", "b@example.com")
	require.NoError(t, err)
	before, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	h.notifier.reset()

	_, err = h.registrations.Register(ctx, tr.ID, "A again", "A@example.com")
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	_, err = h.registrations.Register(ctx, tr.ID, "B again", "b@example.com")
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	_, err = h.registrations.AdminAddRegistration(ctx, tr.ID, "B again", "b@example.com", true)
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	after, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Empty(t, h.notifier.messages())
}

func TestRegister_SameEmailOnOtherTraining(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.training(t, "2025-11-24", 1)
	b := h.training(t, "2025-11-25", 1)

	_, err := h.registrations.Register(ctx, a.ID, "A", "a@example.com")
	require.NoError(t, err)
	reg, err := h.registrations.Register(ctx, b.ID, "A", "a@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, reg.Status)
}

func TestRegister_NotificationFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = fmt.Errorf("smtp down")
	tr := h.training(t, "2025-11-24", 1)

	reg, err := h.registrations.Register(context.Background(), tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, reg.Status)
	require.Len(t, h.notifier.messages(), 1)
}

func TestRegister_ConcurrentForLastSeat(t *testing.T) {
	h := newHarness(t)
	tr := h.training(t, "2025-11-24", 1)

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[domain.Status]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg, err := h.registrations.Register(context.Background(), tr.ID, "P", fmt.Sprintf("p%d@example.com", i))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			statuses[reg.Status]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, statuses[domain.StatusConfirmed])
	require.Equal(t, n-1, statuses[domain.StatusWaitlisted])
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	h := newHarness(t)
	tr := h.training(t, "2025-11-24", 5)

	const n = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		dup int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.registrations.Register(context.Background(), tr.ID, "Same", "same@example.com")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrDuplicateRegistration):
				dup++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, n-1, dup)
}

// capacity 2: A and B confirmed, C waitlisted; cancelling A promotes C.
func TestCancel_PromotesWaitlistedEntrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 2)

	a, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	b, err := h.registrations.Register(ctx, tr.ID, "B", "b@example.com")
	require.NoError(t, err)
	c, err := h.registrations.Register(ctx, tr.ID, "C", "c@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusWaitlisted, c.Status)
	h.notifier.reset()

	res, err := h.registrations.Cancel(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, res.Cancelled.ID)
	require.NotNil(t, res.Promoted)
	require.Equal(t, c.ID, res.Promoted.ID)
	require.Equal(t, domain.StatusConfirmed, res.Promoted.Status)

	regs, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	require.Equal(t, b.ID, regs[0].ID)
	require.Equal(t, c.ID, regs[1].ID)
	for _, r := range regs {
		require.Equal(t, domain.StatusConfirmed, r.Status)
	}

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "c@example.com", msgs[0].To)
	require.Equal(t, "mail.promoted.subject", msgs[0].Subject)
}

func TestCancel_PromotesSmallestID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	first, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	var waitlisted []uint
	for _, name := range []string{"w1", "w2", "w3"} {
		reg, err := h.registrations.Register(ctx, tr.ID, name, name+"@example.com")
		require.NoError(t, err)
		waitlisted = append(waitlisted, reg.ID)
	}
	// Leave the oldest waitlisted entry, so w2 is now first in line.
	_, err = h.registrations.Cancel(ctx, waitlisted[0])
	require.NoError(t, err)

	res, err := h.registrations.Cancel(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	require.Equal(t, waitlisted[1], res.Promoted.ID)
}

func TestCancel_WaitlistedNeverPromotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	_, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	w1, err := h.registrations.Register(ctx, tr.ID, "W1", "w1@example.com")
	require.NoError(t, err)
	_, err = h.registrations.Register(ctx, tr.ID, "W2", "w2@example.com")
	require.NoError(t, err)
	before, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	h.notifier.reset()

	res, err := h.registrations.Cancel(ctx, w1.ID)
	require.NoError(t, err)
	require.Nil(t, res.Promoted)

	after, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, []entities.Registration{before[0], before[2]}, after)
	require.Empty(t, h.notifier.messages())
}

func TestCancel_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.registrations.Cancel(context.Background(), 7)
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestCancelByToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	reg, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "mail.confirmed.body", msgs[0].Body)

	_, err = h.registrations.CancelByToken(ctx, "  ")
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
	_, err = h.registrations.CancelByToken(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)

	res, err := h.registrations.CancelByToken(ctx, reg.CancelToken)
	require.NoError(t, err)
	require.Equal(t, reg.ID, res.Cancelled.ID)

	_, err = h.registrations.CancelByToken(ctx, reg.CancelToken)
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestCancel_CancelURLUsesBaseURL(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, "https://train.example.com/cancel/tok", h.registrations.cancelURL("tok"))
}

func TestCancel_StoreFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	a, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	_, err = h.registrations.Register(ctx, tr.ID, "B", "b@example.com")
	require.NoError(t, err)
	before, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	h.notifier.reset()

	broken := NewRegistrationService(failingPromote{h.store}, h.notifier, keyTranslator{})
	_, err = broken.Cancel(ctx, a.ID)
	require.ErrorIs(t, err, errPromote)

	after, err := h.store.ListRegistrations(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Empty(t, h.notifier.messages())
}

func TestAdminAddRegistration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	// A free seat is always taken, even when the waitlist was asked for.
	reg, err := h.registrations.AdminAddRegistration(ctx, tr.ID, "A", "a@example.com", true)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, reg.Status)

	_, err = h.registrations.AdminAddRegistration(ctx, tr.ID, "X", "x@e.com", false)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	_, err = h.store.FindRegistration(ctx, tr.ID, "x@e.com")
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)

	reg, err = h.registrations.AdminAddRegistration(ctx, tr.ID, "X", "x@e.com", true)
	require.NoError(t, err)
	require.Equal(t, domain.StatusWaitlisted, reg.Status)

	_, err = h.registrations.AdminAddRegistration(ctx, 99, "Y", "y@e.com", false)
	require.ErrorIs(t, err, domain.ErrTrainingNotFound)

	require.Empty(t, h.notifier.messages())
}

func TestAdminKick_NotifiesRemovedAndPromoted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	a, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	b, err := h.registrations.Register(ctx, tr.ID, "B", "b@example.com")
	require.NoError(t, err)
	h.notifier.reset()

	res, err := h.registrations.AdminKick(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	require.Equal(t, b.ID, res.Promoted.ID)

	msgs := h.notifier.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "a@example.com", msgs[0].To)
	require.Equal(t, "mail.kicked.subject", msgs[0].Subject)
	require.Equal(t, "b@example.com", msgs[1].To)
	require.Equal(t, "mail.promoted.subject", msgs[1].Subject)

	_, err = h.registrations.AdminKick(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestAdminKick_NotificationFailureStillDeletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	a, err := h.registrations.Register(ctx, tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	h.notifier.err = fmt.Errorf("smtp down")

	_, err = h.registrations.AdminKick(ctx, a.ID)
	require.NoError(t, err)
	_, err = h.store.GetRegistration(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestResize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.training(t, "2025-11-24", 1)

	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := h.registrations.Register(ctx, tr.ID, name, name+"@example.com")
		require.NoError(t, err)
	}
	h.notifier.reset()

	promoted, err := h.trainings.UpdateCapacity(ctx, tr.ID, 3)
	require.NoError(t, err)
	require.Len(t, promoted, 2)
	require.Equal(t, "b@example.com", promoted[0].Email)
	require.Equal(t, "c@example.com", promoted[1].Email)
	require.Len(t, h.notifier.messages(), 2)

	_, err = h.trainings.UpdateCapacity(ctx, tr.ID, 2)
	require.ErrorIs(t, err, domain.ErrCannotReduceCapacity)
	_, err = h.trainings.UpdateCapacity(ctx, tr.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidCapacity)
	_, err = h.trainings.UpdateCapacity(ctx, 99, 5)
	require.ErrorIs(t, err, domain.ErrTrainingNotFound)

	promoted, err = h.trainings.UpdateCapacity(ctx, tr.ID, 10)
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	require.Equal(t, "d@example.com", promoted[0].Email)

	got, err := h.store.GetTraining(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, 10, got.Capacity)
}

func TestChangeHookRunsAfterMutations(t *testing.T) {
	store := newHarness(t).store
	calls := 0
	svc := NewRegistrationService(store, &recordingNotifier{}, keyTranslator{}, WithChangeHook(func() { calls++ }))
	tr := &entities.Training{Key: "k", DisplayName: "K", Capacity: 1}
	require.NoError(t, store.InsertTraining(context.Background(), tr))

	reg, err := svc.Register(context.Background(), tr.ID, "A", "a@example.com")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), tr.ID, "A", "a@example.com")
	require.Error(t, err)
	_, err = svc.Cancel(context.Background(), reg.ID)
	require.NoError(t, err)

	require.Equal(t, 2, calls)
}

func TestLocaleOption(t *testing.T) {
	svc := NewRegistrationService(nil, nil, keyTranslator{}, WithLocale("nl"), WithCancelBaseURL("http://x/"))
	require.Equal(t, "nl", svc.locale)
	require.True(t, strings.HasPrefix(svc.cancelURL("t"), "http://x/cancel/"))
}
