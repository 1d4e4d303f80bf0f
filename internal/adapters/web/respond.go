package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"trainingreg/internal/domain"
)

const codeInternal = "internal"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return validate.Struct(dst)
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateRegistration),
		errors.Is(err, domain.ErrTrainingKeyExists),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrCannotReduceCapacity),
		errors.Is(err, domain.ErrNotWaitlisted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidCapacity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a localized error body. Unknown errors are logged and
// reported as "internal" without their details.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := h.localeOf(r)

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		code := domain.Code(domain.ErrInvalidInput)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  h.translator.T(locale, "error."+code, nil),
			Code:   code,
			Fields: fields,
		})
		return
	}

	status := statusFor(err)
	code := domain.Code(err)
	if status == http.StatusInternalServerError || code == "" {
		log.Printf("❌ %s %s: %v", r.Method, r.URL.Path, err)
		status, code = http.StatusInternalServerError, codeInternal
	}
	writeJSON(w, status, errorResponse{
		Error: h.translator.T(locale, "error."+code, nil),
		Code:  code,
	})
}

func (h *Handler) localeOf(r *http.Request) string {
	if al := r.Header.Get("Accept-Language"); al != "" {
		return al
	}
	return h.locale
}
