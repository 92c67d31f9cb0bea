package labels

import (
	"fmt"

	"github.com/desertthunder/signx/internal/shared"
)

// Selection records which catalog labels the user expects to see.
type Selection struct {
	expected map[string]bool
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{expected: make(map[string]bool)}
}

// Toggle flips the expected flag of a catalog label and returns the new value.
func (s *Selection) Toggle(label string) (bool, error) {
	if !InCatalog(label) {
		return false, fmt.Errorf("%w: unknown label %q", shared.ErrValidation, label)
	}
	c := Canonical(label)
	s.expected[c] = !s.expected[c]
	return s.expected[c], nil
}

// Set assigns the expected flag of a catalog label.
func (s *Selection) Set(label string, expected bool) error {
	if !InCatalog(label) {
		return fmt.Errorf("%w: unknown label %q", shared.ErrValidation, label)
	}
	s.expected[Canonical(label)] = expected
	return nil
}

// IsExpected reports the flag for label.
func (s *Selection) IsExpected(label string) bool {
	return s.expected[Canonical(label)]
}

// Any reports whether at least one label is marked expected.
func (s *Selection) Any() bool {
	for _, v := range s.expected {
		if v {
			return true
		}
	}
	return false
}

// Expected returns the marked labels in catalog order.
func (s *Selection) Expected() *Set {
	out := NewSet()
	for _, label := range catalog {
		if s.expected[label] {
			out.Add(label)
		}
	}
	return out
}

// Clear unmarks every label.
func (s *Selection) Clear() {
	s.expected = make(map[string]bool)
}
