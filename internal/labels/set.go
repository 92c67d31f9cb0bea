package labels

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// key is the identity of a label: NFC-normalized with surrounding space removed.
func key(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

// Set is an insertion-ordered set of labels with O(1) membership.
//
// The zero value is an empty set ready to use.
type Set struct {
	index  map[string]int
	labels []string
}

// NewSet builds a Set from labels, dropping blanks and duplicates.
func NewSet(labels ...string) *Set {
	s := &Set{}
	for _, l := range labels {
		s.Add(l)
	}
	return s
}

// Add inserts label and reports whether it was new.
func (s *Set) Add(label string) bool {
	k := key(label)
	if k == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.labels)
	s.labels = append(s.labels, k)
	return true
}

// Remove deletes label and reports whether it was present.
func (s *Set) Remove(label string) bool {
	k := key(label)
	i, ok := s.index[k]
	if !ok {
		return false
	}
	s.labels = append(s.labels[:i], s.labels[i+1:]...)
	delete(s.index, k)
	for j := i; j < len(s.labels); j++ {
		s.index[s.labels[j]] = j
	}
	return true
}

// Has reports membership.
func (s *Set) Has(label string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[key(label)]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Labels returns the members in insertion order.
func (s *Set) Labels() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return NewSet(s.Labels()...)
}

// Equal reports whether both sets have the same members, ignoring order.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, l := range s.Labels() {
		if !other.Has(l) {
			return false
		}
	}
	return true
}

// Intersect returns the members of s that are also in other, in the order of s.
func (s *Set) Intersect(other *Set) *Set {
	out := NewSet()
	for _, l := range s.Labels() {
		if other.Has(l) {
			out.Add(l)
		}
	}
	return out
}

// String joins the members with ", ".
func (s *Set) String() string {
	return strings.Join(s.Labels(), ", ")
}

// MarshalJSON encodes the set as an array of strings.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Labels())
}

// UnmarshalJSON decodes an array of strings, discarding duplicates. A JSON null yields an empty set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*s = Set{}
	for _, l := range labels {
		s.Add(l)
	}
	return nil
}
