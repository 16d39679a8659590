// Package ids issues identifiers for persisted gateway records.
package ids

import "github.com/google/uuid"

// Provider yields new unique identifiers.
type Provider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs a Provider that issues UUIDv7 identifiers.
func NewUUIDProvider() Provider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Sequence is a deterministic Provider for tests and fixtures.
type Sequence struct {
	values []string
	next   int
}

// NewSequence returns a Provider that hands out the given values in order and
// falls back to UUIDs once they are exhausted.
func NewSequence(values ...string) *Sequence {
	return &Sequence{values: append([]string(nil), values...)}
}

func (s *Sequence) NewID() (string, error) {
	if s.next < len(s.values) {
		value := s.values[s.next]
		s.next++
		return value, nil
	}
	return uuid.NewString(), nil
}
