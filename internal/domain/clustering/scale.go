package clustering

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// column копирует j-й столбец матрицы.
func column(data [][]float64, j int) []float64 {
	col := make([]float64, len(data))
	for i, row := range data {
		col[i] = row[j]
	}
	return col
}

func width(data [][]float64) int {
	if len(data) == 0 {
		return 0
	}
	return len(data[0])
}

// Standardize вычитает среднее столбца и делит на популяционное
// стандартное отклонение (ddof=0). Столбец с нулевой дисперсией даёт нули.
func Standardize(data [][]float64) [][]float64 {
	p := width(data)
	out := make([][]float64, len(data))
	for i := range out {
		out[i] = make([]float64, p)
	}
	for j := 0; j < p; j++ {
		mu, variance := stat.PopMeanVariance(column(data, j), nil)
		sd := math.Sqrt(variance)
		if sd == 0 || math.IsNaN(sd) {
			continue
		}
		for i := range data {
			out[i][j] = (data[i][j] - mu) / sd
		}
	}
	return out
}

// Winsorize ограничивает каждый столбец по рангам: limit*n наименьших
// значений поднимаются до следующего по порядку, limit*n наибольших
// опускаются до предыдущего. Для limit=0.15 это 15-й и 85-й процентили.
func Winsorize(data [][]float64, limit float64) [][]float64 {
	n := len(data)
	p := width(data)
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), data[i]...)
	}
	if n == 0 || limit <= 0 || math.IsNaN(limit) {
		return out
	}
	if limit >= 0.5 {
		limit = 0.5
	}

	cut := int(limit * float64(n))
	lowIdx, upIdx := cut, n-cut
	if lowIdx >= upIdx {
		return out
	}

	for j := 0; j < p; j++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return data[idx[a]][j] < data[idx[b]][j] })

		lowVal := data[idx[lowIdx]][j]
		upVal := data[idx[upIdx-1]][j]
		for _, i := range idx[:lowIdx] {
			out[i][j] = lowVal
		}
		for _, i := range idx[upIdx:] {
			out[i][j] = upVal
		}
	}
	return out
}

// columnVarianceMean - средняя популяционная дисперсия столбцов,
// масштаб для допуска сходимости K-Means.
func columnVarianceMean(data [][]float64) float64 {
	p := width(data)
	if p == 0 {
		return 0
	}
	var total float64
	for j := 0; j < p; j++ {
		_, v := stat.PopMeanVariance(column(data, j), nil)
		total += v
	}
	return total / float64(p)
}
