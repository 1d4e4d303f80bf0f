// Package web exposes the registration operations over a JSON HTTP API
// built on chi.
package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/input"
	"trainingreg/internal/ports/output"
	"trainingreg/pkg/tz"
)

// Handler holds all HTTP handlers of the API.
type Handler struct {
	registrations input.RegistrationUseCase
	trainings     input.TrainingUseCase
	catalog       input.CatalogUseCase
	translator    output.Translator
	locale        string
	loc           *time.Location
}

// Deps groups the collaborators of a Handler.
type Deps struct {
	Registrations input.RegistrationUseCase
	Trainings     input.TrainingUseCase
	Catalog       input.CatalogUseCase
	Translator    output.Translator
	// Locale is used for error messages when the request has no Accept-Language.
	Locale string
	// Location interprets admin-entered opening times.
	Location *time.Location
}

func NewHandler(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = tz.Amsterdam
	}
	return &Handler{
		registrations: d.Registrations,
		trainings:     d.Trainings,
		catalog:       d.Catalog,
		translator:    d.Translator,
		locale:        d.Locale,
		loc:           loc,
	}
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTrainings handles GET /trainings
func (h *Handler) ListTrainings(w http.ResponseWriter, r *http.Request) {
	views, err := h.catalog.ListTrainings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if views == nil {
		views = []input.TrainingView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// Register handles POST /trainings/{id}/registrations
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	trainingID, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	reg, err := h.registrations.Register(r.Context(), trainingID, req.Name, req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{RegistrationID: reg.ID, Status: reg.Status.String()})
}

// CancelByToken handles GET /cancel/{token}, the link sent in confirmation mails.
func (h *Handler) CancelByToken(w http.ResponseWriter, r *http.Request) {
	res, err := h.registrations.CancelByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancelResponse(res))
}

// CreateTraining handles POST /admin/trainings
func (h *Handler) CreateTraining(w http.ResponseWriter, r *http.Request) {
	var req createTrainingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	opensAt, err := tz.ParseLocal(req.OpensAt, h.loc)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	t, err := h.trainings.CreateTraining(r.Context(), input.NewTraining{
		Key:         req.Key,
		DisplayName: req.DisplayName,
		Capacity:    req.Capacity,
		OpensAt:     opensAt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toTrainingResponse(*t))
}

// TrainingDetail handles GET /admin/trainings/{id}
func (h *Handler) TrainingDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.trainings.TrainingDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trainingDetailResponse{
		Training:     h.toTrainingResponse(d.Training),
		Participants: toRegistrationResponses(d.Participants),
		Waitlist:     toRegistrationResponses(d.Waitlist),
	})
}

// DeleteTraining handles DELETE /admin/trainings/{id}
func (h *Handler) DeleteTraining(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.trainings.DeleteTraining(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCapacity handles PUT /admin/trainings/{id}/capacity
func (h *Handler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req capacityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	promoted, err := h.trainings.UpdateCapacity(r.Context(), id, req.Capacity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capacityResponse{Capacity: req.Capacity, Promoted: toRegistrationResponses(promoted)})
}

// AdminAddRegistration handles POST /admin/trainings/{id}/registrations
func (h *Handler) AdminAddRegistration(w http.ResponseWriter, r *http.Request) {
	trainingID, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req adminRegistrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reg, err := h.registrations.AdminAddRegistration(r.Context(), trainingID, req.Name, req.Email, req.Waitlist)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRegistrationResponse(*reg))
}

// AdminKick handles DELETE /admin/registrations/{id}
func (h *Handler) AdminKick(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.registrations.AdminKick(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancelResponse(res))
}

func (h *Handler) toTrainingResponse(t entities.Training) trainingResponse {
	return trainingResponse{
		ID:          t.ID,
		Key:         t.Key,
		DisplayName: t.DisplayName,
		Capacity:    t.Capacity,
		OpensAt:     t.OpensAt,
		OpensAtText: tz.Format(t.OpensAt, h.loc),
		CreatedAt:   t.CreatedAt,
	}
}

func idParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad %s %q", domain.ErrInvalidInput, name, raw)
	}
	return uint(id), nil
}
