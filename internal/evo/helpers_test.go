package evo

import (
	"fmt"

	"evoloop/internal/random"
)

// scriptedSource replays fixed draws and records the requested ranges.
type scriptedSource struct {
	values []int
	ranges [][2]int
}

func (s *scriptedSource) IntRange(low, high int) int {
	s.ranges = append(s.ranges, [2]int{low, high})
	if len(s.values) == 0 {
		panic(fmt.Sprintf("scripted source exhausted for range [%d, %d]", low, high))
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v
}

// callCounts tallies operator invocations.
type callCounts struct {
	generate, evaluate, crossover, mutate, terminate int
}

// counterConfig builds an int-valued configuration whose generator cycles
// through 0..9 and whose evaluator is the identity.
func counterConfig(settings Settings) Config[int] {
	next := 0
	return Config[int]{
		Settings: settings,
		Operators: Operators[int]{
			Generator: func() (int, error) {
				v := next % 10
				next++
				return v, nil
			},
			Evaluator:  func(v int) (float64, error) { return float64(v), nil },
			Crossover:  func(a, b int) (int, error) { return max(a, b), nil },
			Mutator:    func(v int) (int, error) { return v, nil },
			Terminator: MaxGenerations[int](1),
		},
		Source: random.New(1),
	}
}

// countingConfig wraps every operator of cfg with a counter.
func countingConfig(cfg Config[int], counts *callCounts) Config[int] {
	ops := cfg.Operators
	cfg.Operators = Operators[int]{
		Generator: func() (int, error) {
			counts.generate++
			return ops.Generator()
		},
		Evaluator: func(v int) (float64, error) {
			counts.evaluate++
			return ops.Evaluator(v)
		},
		Crossover: func(a, b int) (int, error) {
			counts.crossover++
			return ops.Crossover(a, b)
		},
		Mutator: func(v int) (int, error) {
			counts.mutate++
			return ops.Mutator(v)
		},
		Terminator: func(pop Population[int]) bool {
			counts.terminate++
			return ops.Terminator(pop)
		},
	}
	return cfg
}

type point struct {
	X, Y float64
}

// pointConfig is a small continuous problem: maximise -(x²+y²).
func pointConfig(seed int64, settings Settings) Config[point] {
	r := random.New(seed)
	return Config[point]{
		Settings: settings,
		Operators: Operators[point]{
			Generator: func() (point, error) {
				return point{X: r.Uniform(-100, 100), Y: r.Uniform(-100, 100)}, nil
			},
			Evaluator: func(p point) (float64, error) {
				return -(p.X*p.X + p.Y*p.Y), nil
			},
			Crossover: func(a, b point) (point, error) {
				return point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}, nil
			},
			Mutator: func(p point) (point, error) {
				return point{X: p.X + r.Normal(0, 1), Y: p.Y + r.Normal(0, 1)}, nil
			},
			Terminator: MaxGenerations[point](25),
		},
		Source: r,
	}
}
