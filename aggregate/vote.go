// Package aggregate computes canonical Building and MasterProperty
// attributes from the fleet of listings attached to them by majority vote,
// and reconstructs per-day price timelines.
package aggregate

import (
	"sort"
	"time"
)

// Ballot is one listing's observation of an attribute, with the timestamp
// used to break a tie between equally-popular values.
type Ballot[T comparable] struct {
	Value      T
	ObservedAt time.Time
}

type tally[T comparable] struct {
	value   T
	count   int
	recency time.Time
}

// Mode returns the majority-vote value over ballots: the most frequent
// value, ties broken by the value with the most recent observation, then
// by less(a, b) (smallest value wins). Returns (zero, false) for no
// ballots — callers treat that as NULL.
func Mode[T comparable](ballots []Ballot[T], less func(a, b T) bool) (T, bool) {
	if len(ballots) == 0 {
		var zero T
		return zero, false
	}

	tallyOf := make(map[T]*tally[T], len(ballots))
	order := make([]T, 0, len(ballots))
	for _, b := range ballots {
		t, ok := tallyOf[b.Value]
		if !ok {
			t = &tally[T]{value: b.Value}
			tallyOf[b.Value] = t
			order = append(order, b.Value)
		}
		t.count++
		if b.ObservedAt.After(t.recency) {
			t.recency = b.ObservedAt
		}
	}

	tallies := make([]*tally[T], 0, len(order))
	for _, v := range order {
		tallies = append(tallies, tallyOf[v])
	}
	sort.Slice(tallies, func(i, j int) bool {
		a, b := tallies[i], tallies[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if !a.recency.Equal(b.recency) {
			return a.recency.After(b.recency)
		}
		return less(a.value, b.value)
	})
	return tallies[0].value, true
}

// LessInt, LessFloat and LessString are the standard tiebreak comparators
// for Mode over the corresponding ballot value types.
func LessInt(a, b int) bool       { return a < b }
func LessFloat(a, b float64) bool { return a < b }
func LessString(a, b string) bool { return a < b }
