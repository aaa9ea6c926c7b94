package graph

import (
	"bytes"

	"github.com/google/uuid"
)

// NewID returns a new time-ordered (version 7) vertex id. Ids generated by
// one process sort in creation order.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source fails.
		return uuid.New()
	}
	return id
}

// NextID returns the id immediately following id in big-endian order.
// It fails for the maximal id, which has no successor.
func NextID(id uuid.UUID) (uuid.UUID, error) {
	next := id
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] < 0xff {
			next[i]++
			return next, nil
		}
		next[i] = 0
	}
	return uuid.Nil, &ValidationError{Value: id.String(), Reason: "could not increment the id"}
}

// CompareIDs orders ids by their big-endian byte representation.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
