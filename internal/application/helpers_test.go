package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trainingreg/internal/domain/entities"
	"trainingreg/internal/infrastructure/memory"
	"trainingreg/internal/ports/output"
)

// keyTranslator renders a message as its key, so tests can assert on the
// kind of message that was sent.
type keyTranslator struct{}

func (keyTranslator) T(_, key string, _ map[string]any) string { return key }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []output.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg output.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) messages() []output.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]output.Message(nil), n.sent...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type harness struct {
	store         *memory.Store
	notifier      *recordingNotifier
	registrations *RegistrationService
	trainings     *TrainingService
	catalog       *CatalogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	catalog := NewCatalogService(store, time.Minute)
	registrations := NewRegistrationService(store, notifier, keyTranslator{},
		WithCancelBaseURL("https://train.example.com/"),
		WithChangeHook(catalog.Invalidate),
	)
	return &harness{
		store:         store,
		notifier:      notifier,
		registrations: registrations,
		trainings:     NewTrainingService(store, registrations),
		catalog:       catalog,
	}
}

func (h *harness) training(t *testing.T, key string, capacity int) *entities.Training {
	t.Helper()
	tr := &entities.Training{
		Key:         key,
		DisplayName: "Training " + key,
		Capacity:    capacity,
		OpensAt:     time.Date(2025, 11, 17, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, h.store.InsertTraining(context.Background(), tr))
	return tr
}

// failingPromote makes every Promote inside a unit of work fail.
type failingPromote struct {
	output.Store
}

var errPromote = errors.New("promote failed")

func (f failingPromote) Promote(context.Context, uint) error { return errPromote }

func (f failingPromote) WithinTraining(ctx context.Context, trainingID uint, fn func(tx output.Store) error) error {
	return f.Store.WithinTraining(ctx, trainingID, func(tx output.Store) error {
		return fn(failingPromote{tx})
	})
}
