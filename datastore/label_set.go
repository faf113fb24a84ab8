package datastore

import (
	"encoding/json"
	"slices"
	"strings"
)

// LabelSet is a sorted set of free-form labels attached to an address ref, e.g. the token symbol.
type LabelSet struct {
	labels []string
}

// NewLabelSet returns a set holding the given labels.
func NewLabelSet(labels ...string) LabelSet {
	var s LabelSet
	s.Add(labels...)

	return s
}

// Add inserts labels, ignoring duplicates and empty strings.
func (s *LabelSet) Add(labels ...string) {
	for _, l := range labels {
		if l == "" {
			continue
		}
		if i, found := slices.BinarySearch(s.labels, l); !found {
			s.labels = slices.Insert(s.labels, i, l)
		}
	}
}

// Contains reports whether label is in the set.
func (s LabelSet) Contains(label string) bool {
	_, found := slices.BinarySearch(s.labels, label)

	return found
}

// List returns the labels in sorted order.
func (s LabelSet) List() []string {
	return slices.Clone(s.labels)
}

// Len returns the number of labels.
func (s LabelSet) Len() int { return len(s.labels) }

// Equal reports whether both sets hold the same labels.
func (s LabelSet) Equal(other LabelSet) bool {
	return slices.Equal(s.labels, other.labels)
}

// Clone returns an independent copy of the set.
func (s LabelSet) Clone() LabelSet {
	return LabelSet{labels: slices.Clone(s.labels)}
}

// String returns the labels separated by spaces.
func (s LabelSet) String() string {
	return strings.Join(s.labels, " ")
}

// MarshalJSON encodes the set as a JSON array.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	if s.labels == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(s.labels)
}

// UnmarshalJSON decodes a JSON array of labels.
func (s *LabelSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*s = NewLabelSet(labels...)

	return nil
}
