package entities

import "time"

// DefaultCapacity is used when a training is created without a seat limit.
const DefaultCapacity = 20

// Training is a capacity-bounded enrollment session.
type Training struct {
	ID          uint
	Key         string // unique slot identifier, e.g. "2025-11-24"
	DisplayName string
	Capacity    int
	OpensAt     time.Time
	CreatedAt   time.Time
}

// IsOpen reports whether registrations are shown as open at now.
func (t *Training) IsOpen(now time.Time) bool {
	return !now.Before(t.OpensAt)
}
