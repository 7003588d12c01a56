package evo

import "evoloop/internal/random"

// Action tags one entry of a generation Plan.
type Action int

const (
	// ActionMutate overwrites a survivor with a mutated copy of itself.
	ActionMutate Action = iota
	// ActionCrossover writes the offspring of two survivors into a
	// replacement slot.
	ActionCrossover
	// ActionFresh writes a newly generated individual into a replacement slot.
	ActionFresh
)

func (a Action) String() string {
	switch a {
	case ActionMutate:
		return "mutate"
	case ActionCrossover:
		return "crossover"
	case ActionFresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// Assignment is one slot write. Parents holds the survivor indices read by
// the action: the slot itself for a mutation, both parents for a crossover,
// and nothing for a fresh individual.
type Assignment struct {
	Index   int
	Action  Action
	Parents [2]int
}

// Plan lists the writes of one generation in the order they are applied:
// M mutations, then CO crossovers, then N fresh injections.
type Plan []Assignment

// ReplacementSlots partitions [Size-K, Size) into crossover and fresh slots.
// Crossover slots count backward from Size-N-1, fresh slots backward from
// Size-1, so both sets are disjoint and together cover every replacement
// slot exactly once.
func ReplacementSlots(s Settings) (crossover, fresh []int) {
	crossover = make([]int, 0, s.CO)
	for i := 0; i < s.CO; i++ {
		crossover = append(crossover, s.Size-s.N-1-i)
	}
	fresh = make([]int, 0, s.N)
	for i := 0; i < s.N; i++ {
		fresh = append(fresh, s.Size-1-i)
	}
	return crossover, fresh
}

// NewPlan draws every index of one generation from src. Mutation indices
// are drawn first, then two parents per crossover, each inclusive-uniform
// over the survivor window [0, Size-K-1].
func NewPlan(s Settings, src random.Source) Plan {
	last := s.Alive() - 1
	plan := make(Plan, 0, s.M+s.K)

	for i := 0; i < s.M; i++ {
		idx := src.IntRange(0, last)
		plan = append(plan, Assignment{Index: idx, Action: ActionMutate, Parents: [2]int{idx, idx}})
	}

	crossover, fresh := ReplacementSlots(s)
	for _, slot := range crossover {
		a := src.IntRange(0, last)
		b := src.IntRange(0, last)
		plan = append(plan, Assignment{Index: slot, Action: ActionCrossover, Parents: [2]int{a, b}})
	}
	for _, slot := range fresh {
		plan = append(plan, Assignment{Index: slot, Action: ActionFresh, Parents: [2]int{-1, -1}})
	}
	return plan
}

// Count returns how many assignments carry action a.
func (p Plan) Count(a Action) int {
	n := 0
	for _, item := range p {
		if item.Action == a {
			n++
		}
	}
	return n
}
