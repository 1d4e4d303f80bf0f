package web

import (
	"time"

	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/input"
)

type registerRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=120"`
}

type adminRegistrationRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Waitlist bool   `json:"waitlist"`
}

type createTrainingRequest struct {
	Key         string `json:"key" validate:"required,max=20"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Capacity    int    `json:"capacity" validate:"gte=0"`
	OpensAt     string `json:"opens_at" validate:"required"`
}

type capacityRequest struct {
	Capacity int `json:"capacity" validate:"gte=1"`
}

type registerResponse struct {
	RegistrationID uint   `json:"registration_id"`
	Status         string `json:"status"`
}

type registrationResponse struct {
	ID         uint      `json:"id"`
	TrainingID uint      `json:"training_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type promotedResponse struct {
	RegistrationID uint   `json:"registration_id"`
	Name           string `json:"name"`
}

type cancelResponse struct {
	CancelledID uint              `json:"cancelled_id"`
	Name        string            `json:"name"`
	Promoted    *promotedResponse `json:"promoted,omitempty"`
}

type trainingResponse struct {
	ID          uint      `json:"id"`
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Capacity    int       `json:"capacity"`
	OpensAt     time.Time `json:"opens_at"`
	OpensAtText string    `json:"opens_at_display"`
	CreatedAt   time.Time `json:"created_at"`
}

type trainingDetailResponse struct {
	Training     trainingResponse       `json:"training"`
	Participants []registrationResponse `json:"participants"`
	Waitlist     []registrationResponse `json:"waitlist"`
}

type capacityResponse struct {
	Capacity int                    `json:"capacity"`
	Promoted []registrationResponse `json:"promoted"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func toRegistrationResponse(r entities.Registration) registrationResponse {
	return registrationResponse{
		ID:         r.ID,
		TrainingID: r.TrainingID,
		Name:       r.Name,
		Email:      r.Email,
		Status:     r.Status.String(),
		CreatedAt:  r.CreatedAt,
	}
}

func toRegistrationResponses(list []entities.Registration) []registrationResponse {
	out := make([]registrationResponse, len(list))
	for i := range list {
		out[i] = toRegistrationResponse(list[i])
	}
	return out
}

func toCancelResponse(res *input.CancelResult) cancelResponse {
	out := cancelResponse{CancelledID: res.Cancelled.ID, Name: res.Cancelled.Name}
	if res.Promoted != nil {
		out.Promoted = &promotedResponse{RegistrationID: res.Promoted.ID, Name: res.Promoted.Name}
	}
	return out
}
