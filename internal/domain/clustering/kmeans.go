package clustering

import (
	"math"
	"math/rand/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// K-MEANS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultSeed повторяет random_state исходных отчётов.
	DefaultSeed uint64 = 42
	// DefaultNInit - число перезапусков основного отчёта.
	DefaultNInit = 20
	// ElbowNInit - число перезапусков для таблицы elbow.
	ElbowNInit = 10
	// DefaultMaxIter - предел итераций Ллойда.
	DefaultMaxIter = 300
	// DefaultTol - относительный допуск сдвига центроидов.
	DefaultTol = 1e-4
)

// Fit - результат лучшего из перезапусков K-Means.
type Fit struct {
	Labels     []int       `json:"labels"`
	Centroids  [][]float64 `json:"centroids"`
	Inertia    float64     `json:"inertia"`
	Iterations int         `json:"iterations"`
}

// Clusterer - алгоритм кластеризации. Интерфейс позволяет подменять
// реализацию в тестах и считать вызовы.
type Clusterer interface {
	Cluster(points [][]float64, k int, nInit int) Fit
}

// KMeans - алгоритм Ллойда с инициализацией k-means++.
type KMeans struct {
	Seed    uint64
	MaxIter int
	Tol     float64
}

// NewKMeans создаёт K-Means с параметрами по умолчанию.
func NewKMeans(seed uint64) *KMeans {
	return &KMeans{Seed: seed, MaxIter: DefaultMaxIter, Tol: DefaultTol}
}

// Cluster запускает nInit независимых инициализаций и возвращает решение
// с наименьшей внутрикластерной суммой квадратов расстояний.
// При равной инерции побеждает более ранний запуск.
func (km *KMeans) Cluster(points [][]float64, k int, nInit int) Fit {
	if nInit < 1 {
		nInit = 1
	}
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	tol := km.Tol * columnVarianceMean(points)

	rng := rand.New(rand.NewPCG(km.Seed, km.Seed^0x9e3779b97f4a7c15))

	var best Fit
	for run := 0; run < nInit; run++ {
		centroids := seedPlusPlus(points, k, rng)
		fit := lloyd(points, centroids, maxIter, tol)
		if run == 0 || fit.Inertia < best.Inertia {
			best = fit
		}
	}
	return best
}

// seedPlusPlus - жадный k-means++: на каждом шаге пробуется 2+ln(k)
// кандидатов, выбирается тот, что сильнее уменьшает потенциал.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	trials := 2 + int(math.Log(float64(k)))

	centroids := make([][]float64, 0, k)
	first := rng.IntN(n)
	centroids = append(centroids, clone(points[first]))

	closest := make([]float64, n)
	var potential float64
	for i, x := range points {
		closest[i] = sqDist(x, centroids[0])
		potential += closest[i]
	}

	for c := 1; c < k; c++ {
		bestCandidate := -1
		bestPotential := math.Inf(1)
		var bestClosest []float64

		for t := 0; t < trials; t++ {
			cand := sampleByWeight(closest, potential, rng)
			candClosest := make([]float64, n)
			var candPotential float64
			for i, x := range points {
				candClosest[i] = math.Min(closest[i], sqDist(x, points[cand]))
				candPotential += candClosest[i]
			}
			if candPotential < bestPotential {
				bestCandidate, bestPotential, bestClosest = cand, candPotential, candClosest
			}
		}

		centroids = append(centroids, clone(points[bestCandidate]))
		closest, potential = bestClosest, bestPotential
	}
	return centroids
}

// sampleByWeight выбирает индекс с вероятностью, пропорциональной весу.
// При нулевом суммарном весе выбор равномерный.
func sampleByWeight(weights []float64, total float64, rng *rand.Rand) int {
	if total <= 0 {
		return rng.IntN(len(weights))
	}
	r := rng.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}

func lloyd(points [][]float64, centroids [][]float64, maxIter int, tol float64) Fit {
	n, k := len(points), len(centroids)
	p := width(points)
	labels := make([]int, n)

	iter := 0
	for iter < maxIter {
		iter++
		assign(points, centroids, labels)

		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, p)
		}
		for i, x := range points {
			c := labels[i]
			counts[c]++
			for j := range x {
				next[c][j] += x[j]
			}
		}
		for c := range next {
			if counts[c] == 0 {
				relocateEmpty(points, centroids, labels, next, c)
				continue
			}
			for j := range next[c] {
				next[c][j] /= float64(counts[c])
			}
		}

		var shift float64
		for c := range next {
			shift += sqDist(next[c], centroids[c])
		}
		centroids = next
		if shift <= tol {
			break
		}
	}

	assign(points, centroids, labels)
	var inertia float64
	for i, x := range points {
		inertia += sqDist(x, centroids[labels[i]])
	}
	return Fit{Labels: labels, Centroids: centroids, Inertia: inertia, Iterations: iter}
}

// relocateEmpty переносит пустой центроид на точку, наиболее удалённую
// от своего центроида. Если все точки совпадают с центроидами,
// центроид остаётся на месте.
func relocateEmpty(points, centroids [][]float64, labels []int, next [][]float64, c int) {
	far, farDist := -1, 0.0
	for i, x := range points {
		d := sqDist(x, centroids[labels[i]])
		if d > farDist {
			far, farDist = i, d
		}
	}
	if far < 0 {
		next[c] = clone(centroids[c])
		return
	}
	next[c] = clone(points[far])
}

// assign назначает ближайший центроид; при равенстве - меньший индекс.
func assign(points, centroids [][]float64, labels []int) {
	for i, x := range points {
		best, bestDist := 0, math.Inf(1)
		for c, mu := range centroids {
			if d := sqDist(x, mu); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
