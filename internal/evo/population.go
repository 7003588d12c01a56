package evo

import "sort"

// Scored pairs an individual with its fitness. Higher fitness is better.
type Scored[E any] struct {
	Individual E
	Fitness    float64
}

// Population is a read-only view of the ranked population. A view handed to
// a terminator or observer is only valid for the duration of that call; use
// Members to keep a copy.
type Population[E any] struct {
	members    []Scored[E]
	generation int
}

func (p Population[E]) Len() int {
	return len(p.members)
}

func (p Population[E]) At(i int) Scored[E] {
	return p.members[i]
}

// Best is the individual at rank 0.
func (p Population[E]) Best() Scored[E] {
	return p.members[0]
}

// Generation is 0 for the initial ranking and counts completed generation
// steps afterwards.
func (p Population[E]) Generation() int {
	return p.generation
}

// Members returns a copy of the ranked members.
func (p Population[E]) Members() []Scored[E] {
	out := make([]Scored[E], len(p.members))
	copy(out, p.members)
	return out
}

func (p Population[E]) Fitnesses() []float64 {
	out := make([]float64, len(p.members))
	for i, m := range p.members {
		out[i] = m.Fitness
	}
	return out
}

// Ranked reports whether members are ordered non-increasing by fitness.
func (p Population[E]) Ranked() bool {
	for i := 1; i < len(p.members); i++ {
		if p.members[i].Fitness > p.members[i-1].Fitness {
			return false
		}
	}
	return true
}

// rank sorts descending by fitness. Equal fitnesses keep their current
// relative order.
func rank[E any](members []Scored[E]) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Fitness > members[j].Fitness
	})
}
