package domain

import "errors"

// Domain errors.
var (
	ErrTrainingNotFound      = errors.New("training not found")
	ErrTrainingKeyExists     = errors.New("a training with this key already exists")
	ErrInvalidCapacity       = errors.New("capacity must be at least 1")
	ErrCannotReduceCapacity  = errors.New("capacity cannot go below the confirmed count")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrDuplicateRegistration = errors.New("email already registered for this training")
	ErrCapacityExceeded      = errors.New("training is full")
	ErrNotWaitlisted         = errors.New("registration is not waitlisted")
	ErrWaitlistEmpty         = errors.New("no waitlisted registration")
	ErrInvalidInput          = errors.New("invalid input")
)

var codes = map[error]string{
	ErrTrainingNotFound:      "training_not_found",
	ErrTrainingKeyExists:     "training_key_exists",
	ErrInvalidCapacity:       "invalid_capacity",
	ErrCannotReduceCapacity:  "cannot_reduce_capacity",
	ErrRegistrationNotFound:  "registration_not_found",
	ErrDuplicateRegistration: "duplicate_registration",
	ErrCapacityExceeded:      "capacity_exceeded",
	ErrNotWaitlisted:         "not_waitlisted",
	ErrWaitlistEmpty:         "waitlist_empty",
	ErrInvalidInput:          "invalid_input",
}

// Code returns the stable code of the domain error wrapped by err, or "" when
// err does not carry one.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for target, code := range codes {
		if errors.Is(err, target) {
			return code
		}
	}
	return ""
}

// IsNotFound reports whether err means that a referenced training or
// registration does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTrainingNotFound) || errors.Is(err, ErrRegistrationNotFound)
}
