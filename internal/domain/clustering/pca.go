package clustering

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// PCAResult - проекция на главные компоненты.
type PCAResult struct {
	// Components[c] - вектор нагрузок c-й компоненты.
	Components [][]float64 `json:"components"`
	// ExplainedVarianceRatio - доля дисперсии каждой компоненты.
	ExplainedVarianceRatio []float64 `json:"explained_variance_ratio"`
	// Projected - координаты строк в пространстве компонент.
	Projected [][]float64 `json:"projected"`
}

// PCA проецирует данные на nComponents направлений максимальной дисперсии
// через собственное разложение ковариационной матрицы.
// Знак каждой компоненты фиксируется так, чтобы наибольшая по модулю
// нагрузка была положительной.
func PCA(data [][]float64, nComponents int) (PCAResult, error) {
	n, p := len(data), width(data)
	if n < 2 || p == 0 {
		return PCAResult{}, shared.NewDomainError("clustering", "PCA", shared.ErrInsufficientData, "need at least two rows")
	}
	if nComponents > p {
		nComponents = p
	}

	flat := make([]float64, 0, n*p)
	for _, row := range data {
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, p, flat)

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return PCAResult{}, shared.NewDomainError("clustering", "PCA", shared.ErrDegenerateCluster, "eigen decomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	var total float64
	for _, v := range values {
		total += math.Max(v, 0)
	}

	means := make([]float64, p)
	for j := 0; j < p; j++ {
		means[j] = stat.Mean(column(data, j), nil)
	}

	res := PCAResult{
		Components:             make([][]float64, 0, nComponents),
		ExplainedVarianceRatio: make([]float64, 0, nComponents),
		Projected:              make([][]float64, n),
	}
	for i := range res.Projected {
		res.Projected[i] = make([]float64, nComponents)
	}

	// Собственные значения идут по возрастанию.
	for c := 0; c < nComponents; c++ {
		col := p - 1 - c
		comp := mat.Col(nil, col, &vectors)
		flipSign(comp)
		res.Components = append(res.Components, comp)

		ratio := 0.0
		if total > 0 {
			ratio = math.Max(values[col], 0) / total
		}
		res.ExplainedVarianceRatio = append(res.ExplainedVarianceRatio, ratio)

		for i, row := range data {
			var dot float64
			for j := range row {
				dot += (row[j] - means[j]) * comp[j]
			}
			res.Projected[i][c] = dot
		}
	}
	return res, nil
}

func flipSign(v []float64) {
	maxIdx := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[maxIdx]) {
			maxIdx = i
		}
	}
	if v[maxIdx] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}
