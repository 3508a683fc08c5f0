package clustering

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Silhouette возвращает средний коэффициент силуэта по всем точкам.
// Для точки в одиночном кластере коэффициент равен 0.
// ok=false, если число различных меток не в диапазоне [2, n-1]:
// тогда метрика не определена.
func Silhouette(points [][]float64, labels []int) (score float64, ok bool) {
	n := len(points)
	clusters := make(map[int]int)
	for _, l := range labels {
		clusters[l]++
	}
	if len(clusters) < 2 || len(clusters) > n-1 {
		return 0, false
	}

	var total float64
	for i := range points {
		if clusters[labels[i]] == 1 {
			continue
		}
		sums := make(map[int]float64, len(clusters))
		for j := range points {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(points[i], points[j], 2)
		}

		a := sums[labels[i]] / float64(clusters[labels[i]]-1)
		b := math.Inf(1)
		for c, size := range clusters {
			if c == labels[i] {
				continue
			}
			b = math.Min(b, sums[c]/float64(size))
		}

		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(n), true
}
