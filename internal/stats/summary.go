package stats

import (
	"math"

	"golang.org/x/exp/constraints"

	"evoloop/internal/model"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// MapReduce folds mapper(item) into z with reducer, left to right.
func MapReduce[T, U any](items []T, mapper func(T) U, reducer func(U, U) U, z U) U {
	result := z
	for _, item := range items {
		result = reducer(result, mapper(item))
	}
	return result
}

func Sum[N Number](values []N) N {
	return MapReduce(values, func(v N) N { return v }, func(a, b N) N { return a + b }, 0)
}

// Mean returns 0 for an empty slice.
func Mean[N Number](values []N) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(Sum(values)) / float64(len(values))
}

// StdDev is the population standard deviation.
func StdDev[N Number](values []N) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sq := MapReduce(values, func(v N) float64 {
		d := float64(v) - mean
		return d * d
	}, func(a, b float64) float64 { return a + b }, 0.0)
	return math.Sqrt(sq / float64(len(values)))
}

// Summarize builds the diagnostics row of one generation from its fitness
// values. The values need not be sorted.
func Summarize(generation int, fitness []float64) model.GenerationDiagnostics {
	if len(fitness) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}

	best, worst := fitness[0], fitness[0]
	distinct := make(map[float64]struct{}, len(fitness))
	for _, f := range fitness {
		best = math.Max(best, f)
		worst = math.Min(worst, f)
		distinct[f] = struct{}{}
	}

	return model.GenerationDiagnostics{
		Generation:     generation,
		BestFitness:    best,
		MeanFitness:    Mean(fitness),
		MinFitness:     worst,
		StdDevFitness:  StdDev(fitness),
		DistinctScores: len(distinct),
	}
}

// BestSeries extracts the best fitness of each diagnostics row.
func BestSeries(diagnostics []model.GenerationDiagnostics) []float64 {
	out := make([]float64, len(diagnostics))
	for i, d := range diagnostics {
		out[i] = d.BestFitness
	}
	return out
}
