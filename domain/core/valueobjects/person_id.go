package valueobjects

import (
	"github.com/google/uuid"
)

// NewPersonID returns a fresh person identifier.
// UUIDv7 packs a millisecond timestamp with random bits, so ids sort roughly by
// creation time and collide only with negligible probability.
func NewPersonID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
