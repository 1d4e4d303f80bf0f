package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/input"
	"trainingreg/internal/ports/output"
	"trainingreg/internal/tracing"
	"trainingreg/pkg/keylock"
)

var _ input.RegistrationUseCase = (*RegistrationService)(nil)

// applicantRules checks applicant fields with the same rules the HTTP DTOs use,
// so every entry point stores a bare, comparable mailbox.
var applicantRules = validator.New()

// Message kinds, used as i18n key prefixes ("mail.<kind>.subject").
const (
	mailConfirmed  = "confirmed"
	mailWaitlisted = "waitlisted"
	mailPromoted   = "promoted"
	mailKicked     = "kicked"
)

// RegistrationService is the capacity manager. Every mutation of a training's
// registrations runs under the training's lock and inside a store unit of
// work; notifications are sent only once both are released.
type RegistrationService struct {
	store      output.Store
	notifier   output.Notifier
	translator output.Translator
	locks      keylock.Table[uint]
	tracer     trace.Tracer

	locale        string
	cancelBaseURL string
	onChange      func()
	newToken      func() string
}

// Option customizes a RegistrationService.
type Option func(*RegistrationService)

// WithLocale sets the locale of outgoing messages.
func WithLocale(locale string) Option {
	return func(s *RegistrationService) { s.locale = locale }
}

// WithCancelBaseURL sets the public base URL used to build cancel links.
func WithCancelBaseURL(baseURL string) Option {
	return func(s *RegistrationService) { s.cancelBaseURL = strings.TrimRight(baseURL, "/") }
}

// WithChangeHook registers fn to be called after every committed mutation.
func WithChangeHook(fn func()) Option {
	return func(s *RegistrationService) { s.onChange = fn }
}

func NewRegistrationService(
	store output.Store,
	notifier output.Notifier,
	translator output.Translator,
	opts ...Option,
) *RegistrationService {
	s := &RegistrationService{
		store:      store,
		notifier:   notifier,
		translator: translator,
		tracer:     tracing.Tracer("trainingreg/application"),
		locale:     "en",
		onChange:   func() {},
		newToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register enrolls name/email in the training. The registration is confirmed
// while seats remain and waitlisted otherwise.
func (s *RegistrationService) Register(ctx context.Context, trainingID uint, name, email string) (*entities.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.register",
		trace.WithAttributes(attribute.Int64(tracing.AttrTrainingID, int64(trainingID))))
	defer span.End()

	name, email, err := normalizeApplicant(name, email)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	var (
		training *entities.Training
		reg      *entities.Registration
	)
	err = s.locked(ctx, trainingID, func(tx output.Store) error {
		t, err := tx.GetTraining(ctx, trainingID)
		if err != nil {
			return err
		}
		if err := ensureNotRegistered(ctx, tx, trainingID, email); err != nil {
			return err
		}
		confirmed, err := tx.CountRegistrations(ctx, trainingID, domain.StatusConfirmed)
		if err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		status := domain.StatusConfirmed
		if confirmed >= t.Capacity {
			status = domain.StatusWaitlisted
		}
		r := s.newRegistration(trainingID, name, email, status)
		if err := tx.InsertRegistration(ctx, r); err != nil {
			return err
		}
		training, reg = t, r
		return nil
	})
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(
		attribute.Int64(tracing.AttrRegistrationID, int64(reg.ID)),
		attribute.String(tracing.AttrStatus, reg.Status.String()),
	)
	s.onChange()

	kind := mailConfirmed
	if reg.Status.Waitlisted() {
		kind = mailWaitlisted
	}
	s.notify(ctx, kind, training, reg)
	return reg, nil
}

// Cancel removes the registration. When it held a seat, the earliest
// waitlisted registration of the same training is promoted.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID uint) (*input.CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.cancel",
		trace.WithAttributes(attribute.Int64(tracing.AttrRegistrationID, int64(registrationID))))
	defer span.End()

	res, training, err := s.remove(ctx, registrationID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	s.notifyPromoted(ctx, span, training, res.Promoted)
	return res, nil
}

// CancelByToken cancels the registration owning the cancel token.
func (s *RegistrationService) CancelByToken(ctx context.Context, token string) (*input.CancelResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrRegistrationNotFound
	}
	reg, err := s.store.GetRegistrationByCancelToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Cancel(ctx, reg.ID)
}

// AdminAddRegistration inserts a registration on behalf of an organizer.
// Unlike Register, asking for a seat on a full training fails with
// domain.ErrCapacityExceeded. Asking for the waitlist while seats are free
// yields a confirmed registration, since the waitlist stays empty while room
// exists.
func (s *RegistrationService) AdminAddRegistration(ctx context.Context, trainingID uint, name, email string, asWaitlist bool) (*entities.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.admin_add",
		trace.WithAttributes(attribute.Int64(tracing.AttrTrainingID, int64(trainingID))))
	defer span.End()

	name, email, err := normalizeApplicant(name, email)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	var reg *entities.Registration
	err = s.locked(ctx, trainingID, func(tx output.Store) error {
		t, err := tx.GetTraining(ctx, trainingID)
		if err != nil {
			return err
		}
		if err := ensureNotRegistered(ctx, tx, trainingID, email); err != nil {
			return err
		}
		confirmed, err := tx.CountRegistrations(ctx, trainingID, domain.StatusConfirmed)
		if err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		status := domain.StatusConfirmed
		if confirmed >= t.Capacity {
			if !asWaitlist {
				return domain.ErrCapacityExceeded
			}
			status = domain.StatusWaitlisted
		}
		r := s.newRegistration(trainingID, name, email, status)
		if err := tx.InsertRegistration(ctx, r); err != nil {
			return err
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.String(tracing.AttrStatus, reg.Status.String()))
	s.onChange()
	return reg, nil
}

// AdminKick removes a registration on behalf of an organizer and tells the
// removed entrant. Promotion follows the same rule as Cancel.
func (s *RegistrationService) AdminKick(ctx context.Context, registrationID uint) (*input.CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.admin_kick",
		trace.WithAttributes(attribute.Int64(tracing.AttrRegistrationID, int64(registrationID))))
	defer span.End()

	res, training, err := s.remove(ctx, registrationID)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	s.notify(ctx, mailKicked, training, &res.Cancelled)
	s.notifyPromoted(ctx, span, training, res.Promoted)
	return res, nil
}

// remove deletes a registration and promotes the next waitlisted entrant when
// a seat was freed.
func (s *RegistrationService) remove(ctx context.Context, registrationID uint) (*input.CancelResult, *entities.Training, error) {
	// trainingID is immutable, so it is safe to read before taking the lock.
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}

	var (
		res      input.CancelResult
		training *entities.Training
	)
	err = s.locked(ctx, reg.TrainingID, func(tx output.Store) error {
		current, err := tx.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		t, err := tx.GetTraining(ctx, current.TrainingID)
		if err != nil {
			return err
		}
		if err := tx.DeleteRegistration(ctx, registrationID); err != nil {
			return err
		}
		res = input.CancelResult{Cancelled: *current}
		training = t
		if !current.IsConfirmed() {
			return nil
		}
		promoted, err := promoteNext(ctx, tx, t)
		if err != nil {
			return err
		}
		res.Promoted = promoted
		return nil
	})
	if errors.Is(err, domain.ErrTrainingNotFound) {
		// The training was deleted in between, taking the registration with it.
		return nil, nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	s.onChange()
	return &res, training, nil
}

// resize changes a training's capacity and fills newly available seats from
// the waitlist.
func (s *RegistrationService) resize(ctx context.Context, trainingID uint, capacity int) ([]entities.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "training.resize",
		trace.WithAttributes(attribute.Int64(tracing.AttrTrainingID, int64(trainingID))))
	defer span.End()

	if capacity < 1 {
		return nil, tracing.Fail(span, domain.ErrInvalidCapacity)
	}

	var (
		training *entities.Training
		promoted []entities.Registration
	)
	err := s.locked(ctx, trainingID, func(tx output.Store) error {
		t, err := tx.GetTraining(ctx, trainingID)
		if err != nil {
			return err
		}
		confirmed, err := tx.CountRegistrations(ctx, trainingID, domain.StatusConfirmed)
		if err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		if capacity < confirmed {
			return domain.ErrCannotReduceCapacity
		}
		if err := tx.UpdateCapacity(ctx, trainingID, capacity); err != nil {
			return err
		}
		t.Capacity = capacity
		for {
			next, err := promoteNext(ctx, tx, t)
			if err != nil {
				return err
			}
			if next == nil {
				break
			}
			promoted = append(promoted, *next)
		}
		training = t
		return nil
	})
	if err != nil {
		return nil, tracing.Fail(span, err)
	}
	s.onChange()
	for i := range promoted {
		s.notify(ctx, mailPromoted, training, &promoted[i])
	}
	return promoted, nil
}

// locked runs fn under the training's in-process lock and the store's unit
// of work for that training.
func (s *RegistrationService) locked(ctx context.Context, trainingID uint, fn func(tx output.Store) error) error {
	unlock := s.locks.Lock(trainingID)
	defer unlock()
	return s.store.WithinTraining(ctx, trainingID, fn)
}

func (s *RegistrationService) newRegistration(trainingID uint, name, email string, status domain.Status) *entities.Registration {
	return &entities.Registration{
		TrainingID:  trainingID,
		Name:        name,
		Email:       email,
		Status:      status,
		CancelToken: s.newToken(),
	}
}

func (s *RegistrationService) notifyPromoted(ctx context.Context, span trace.Span, training *entities.Training, promoted *entities.Registration) {
	if promoted == nil {
		return
	}
	span.SetAttributes(attribute.Int64(tracing.AttrPromotedID, int64(promoted.ID)))
	s.notify(ctx, mailPromoted, training, promoted)
}

// notify renders and hands off one message. Failures are logged, never returned.
func (s *RegistrationService) notify(ctx context.Context, kind string, training *entities.Training, reg *entities.Registration) {
	data := map[string]any{
		"Name":      reg.Name,
		"Training":  training.DisplayName,
		"CancelURL": s.cancelURL(reg.CancelToken),
	}
	msg := output.Message{
		To:      reg.Email,
		Subject: s.translator.T(s.locale, "mail."+kind+".subject", data),
		Body:    s.translator.T(s.locale, "mail."+kind+".body", data),
	}
	if err := s.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		log.Printf("⚠️ Notification %s to %s not sent: %v", kind, reg.Email, err)
	}
}

func (s *RegistrationService) cancelURL(token string) string {
	return s.cancelBaseURL + "/cancel/" + token
}

// promoteNext confirms the earliest waitlisted registration when a seat is
// free. It returns nil when no promotion happened.
func promoteNext(ctx context.Context, tx output.Store, training *entities.Training) (*entities.Registration, error) {
	confirmed, err := tx.CountRegistrations(ctx, training.ID, domain.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("count confirmed: %w", err)
	}
	if confirmed >= training.Capacity {
		return nil, nil
	}
	next, err := tx.EarliestWaitlisted(ctx, training.ID)
	if errors.Is(err, domain.ErrWaitlistEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("earliest waitlisted: %w", err)
	}
	status, err := next.Status.Promote()
	if err != nil {
		return nil, err
	}
	if err := tx.Promote(ctx, next.ID); err != nil {
		return nil, err
	}
	next.Status = status
	return next, nil
}

func ensureNotRegistered(ctx context.Context, tx output.Store, trainingID uint, email string) error {
	_, err := tx.FindRegistration(ctx, trainingID, email)
	switch {
	case err == nil:
		return domain.ErrDuplicateRegistration
	case errors.Is(err, domain.ErrRegistrationNotFound):
		return nil
	default:
		return fmt.Errorf("find registration: %w", err)
	}
}

// normalizeApplicant trims the name and lowercases the email so that the
// one-registration-per-email rule is case-insensitive. Display-name forms
// such as "Ada <ada@example.com>" are rejected.
func normalizeApplicant(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := applicantRules.Var(name, "required,max=100"); err != nil {
		return "", "", fmt.Errorf("%w: name is required (max 100 characters)", domain.ErrInvalidInput)
	}
	if err := applicantRules.Var(email, "required,email,max=120"); err != nil {
		return "", "", fmt.Errorf("%w: invalid email %q", domain.ErrInvalidInput, email)
	}
	return name, email, nil
}
