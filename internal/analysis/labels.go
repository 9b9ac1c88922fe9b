// Package analysis turns classified activity windows into distributions and
// sedentary-behaviour evaluations.
package analysis

import "strings"

// Activity labels emitted by the HAR classifier. The label set is open; the
// classifier may introduce new labels, which fall into the "other" group.
const (
	LabelSit      = "sit"
	LabelWalk     = "walk"
	LabelType     = "type"
	LabelEat      = "eat"
	LabelWrite    = "write"
	LabelWorkouts = "workouts"
	LabelOthers   = "others"
)

// LabelSet is a case-insensitive membership set over activity labels.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from the given labels.
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, label := range labels {
		set[strings.ToLower(label)] = struct{}{}
	}
	return set
}

// Contains reports whether label belongs to the set.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[strings.ToLower(label)]
	return ok
}

// Taxonomy partitions labels into the three groups both the sedentary
// analyzer and the progress comparator consume. Keeping a single taxonomy
// avoids the two components drifting apart on what counts as active.
type Taxonomy struct {
	Sedentary LabelSet
	Active    LabelSet
	Other     LabelSet
}

// DefaultTaxonomy returns the canonical grouping: sedentary
// {sit, type, eat, write}, active {walk, workouts}, other {others}.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Sedentary: NewLabelSet(LabelSit, LabelType, LabelEat, LabelWrite),
		Active:    NewLabelSet(LabelWalk, LabelWorkouts),
		Other:     NewLabelSet(LabelOthers),
	}
}
