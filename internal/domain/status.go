package domain

import "fmt"

// Status is the seat state of a registration.
type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusWaitlisted Status = "waitlisted"
)

// ParseStatus converts a persisted value back into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusConfirmed, StatusWaitlisted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown registration status %q", s)
	}
}

func (s Status) String() string { return string(s) }

// Waitlisted reports whether the registration does not occupy a seat.
func (s Status) Waitlisted() bool { return s == StatusWaitlisted }

// Promote is the only legal transition: Waitlisted becomes Confirmed.
func (s Status) Promote() (Status, error) {
	if s != StatusWaitlisted {
		return s, ErrNotWaitlisted
	}
	return StatusConfirmed, nil
}
