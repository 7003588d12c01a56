package evo

import "math"

// MaxGenerations stops once n generation steps have completed.
func MaxGenerations[E any](n int) Terminator[E] {
	return func(pop Population[E]) bool {
		return pop.Generation() >= n
	}
}

// FitnessAtLeast stops once the best fitness reaches target.
func FitnessAtLeast[E any](target float64) Terminator[E] {
	return func(pop Population[E]) bool {
		return pop.Len() > 0 && pop.Best().Fitness >= target
	}
}

// Any stops when at least one of terms stops.
func Any[E any](terms ...Terminator[E]) Terminator[E] {
	return func(pop Population[E]) bool {
		for _, term := range terms {
			if term(pop) {
				return true
			}
		}
		return false
	}
}

// All stops when every term stops. With no terms it never stops.
func All[E any](terms ...Terminator[E]) Terminator[E] {
	return func(pop Population[E]) bool {
		if len(terms) == 0 {
			return false
		}
		for _, term := range terms {
			if !term(pop) {
				return false
			}
		}
		return true
	}
}

// Converged stops when at most maxOutliers (a fraction in [0, 1]) of the
// population has a coordinate outside mean ± tolerance·|mean| of that
// coordinate. The band is never narrower than floor, which keeps a
// population clustered around zero from counting as scattered.
func Converged[E any](coords func(E) []float64, tolerance, maxOutliers, floor float64) Terminator[E] {
	return func(pop Population[E]) bool {
		if pop.Len() == 0 {
			return false
		}
		return OutlierFraction(pop, coords, tolerance, floor) <= maxOutliers
	}
}

// OutlierFraction is the share of individuals with at least one coordinate
// outside the tolerance band around the population mean.
func OutlierFraction[E any](pop Population[E], coords func(E) []float64, tolerance, floor float64) float64 {
	n := pop.Len()
	if n == 0 {
		return 0
	}

	points := make([][]float64, n)
	var mean []float64
	for i := 0; i < n; i++ {
		points[i] = coords(pop.At(i).Individual)
		if mean == nil {
			mean = make([]float64, len(points[i]))
		}
		for d := 0; d < len(mean) && d < len(points[i]); d++ {
			mean[d] += points[i][d]
		}
	}
	band := make([]float64, len(mean))
	for d := range mean {
		mean[d] /= float64(n)
		band[d] = math.Max(tolerance*math.Abs(mean[d]), floor)
	}

	outliers := 0
	for _, p := range points {
		for d := 0; d < len(mean) && d < len(p); d++ {
			if math.Abs(p[d]-mean[d]) > band[d] {
				outliers++
				break
			}
		}
	}
	return float64(outliers) / float64(n)
}
