// Package clustering содержит конвейер кластеризации сантри:
// агрегирование признаков, стандартизация, K-Means и ранжирование кластеров.
// Все шаги детерминированы при фиксированном seed.
package clustering

import (
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// Feature - имя столбца признаков.
type Feature string

const (
	FeatureWeightedMemorized Feature = "weighted_memorized"
	FeatureWeightedSubmitted Feature = "weighted_submitted"
	FeatureFluencyRecitation Feature = "fluency_recitation"
	FeatureFluencyReview     Feature = "fluency_review"
	FeatureFluencyTadarus    Feature = "fluency_tadarus"
	FeatureFluencyTotal      Feature = "fluency_total"
	FeatureAttendanceRate    Feature = "attendance_rate"
)

// FeatureSet - набор признаков, подаваемых в K-Means.
type FeatureSet string

const (
	// FeatureSetFull - шесть признаков дневного журнала.
	FeatureSetFull FeatureSet = "full"
	// FeatureSetCompact - взвешенный хафалан, средняя kelancaran, посещаемость.
	FeatureSetCompact FeatureSet = "compact"
)

// ParseFeatureSet разбирает набор признаков; пустая строка означает full.
func ParseFeatureSet(s string) (FeatureSet, error) {
	switch FeatureSet(strings.ToLower(strings.TrimSpace(s))) {
	case "", FeatureSetFull:
		return FeatureSetFull, nil
	case FeatureSetCompact:
		return FeatureSetCompact, nil
	default:
		return "", shared.NewDomainError("clustering", "ParseFeatureSet", shared.ErrInvalidInput,
			"feature set must be full or compact")
	}
}

// Features возвращает столбцы набора в фиксированном порядке.
func (s FeatureSet) Features() []Feature {
	if s == FeatureSetCompact {
		return []Feature{FeatureWeightedMemorized, FeatureFluencyTotal, FeatureAttendanceRate}
	}
	return []Feature{
		FeatureWeightedMemorized,
		FeatureWeightedSubmitted,
		FeatureFluencyRecitation,
		FeatureFluencyReview,
		FeatureFluencyTadarus,
		FeatureAttendanceRate,
	}
}

// StudentFeatureRow - средние значения признаков сантри за период.
// Не сохраняется, пересчитывается на каждый отчёт.
type StudentFeatureRow struct {
	StudentName       string        `json:"student_name"`
	RecordCount       int           `json:"record_count"`
	WeightedMemorized float64       `json:"weighted_memorized"`
	WeightedSubmitted float64       `json:"weighted_submitted"`
	FluencyRecitation hafalan.Score `json:"fluency_recitation"`
	FluencyReview     hafalan.Score `json:"fluency_review"`
	FluencyTadarus    hafalan.Score `json:"fluency_tadarus"`
	FluencyTotal      hafalan.Score `json:"fluency_total"`
	AttendanceRate    float64       `json:"attendance_rate"`
}

// Value возвращает значение признака и признак его наличия.
func (r StudentFeatureRow) Value(f Feature) (float64, bool) {
	switch f {
	case FeatureWeightedMemorized:
		return r.WeightedMemorized, true
	case FeatureWeightedSubmitted:
		return r.WeightedSubmitted, true
	case FeatureFluencyRecitation:
		return r.FluencyRecitation.Value, r.FluencyRecitation.Valid
	case FeatureFluencyReview:
		return r.FluencyReview.Value, r.FluencyReview.Valid
	case FeatureFluencyTadarus:
		return r.FluencyTadarus.Value, r.FluencyTadarus.Valid
	case FeatureFluencyTotal:
		return r.FluencyTotal.Value, r.FluencyTotal.Valid
	case FeatureAttendanceRate:
		return r.AttendanceRate, true
	default:
		return 0, false
	}
}

// Matrix строит плотную матрицу признаков.
// Отсутствующее значение заменяется средним столбца по остальным сантри,
// а если столбец пуст целиком - нулём.
func Matrix(rows []StudentFeatureRow, features []Feature) [][]float64 {
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = make([]float64, len(features))
	}
	for j, f := range features {
		var sum float64
		var n int
		missing := make([]int, 0)
		for i, row := range rows {
			v, ok := row.Value(f)
			if !ok {
				missing = append(missing, i)
				continue
			}
			out[i][j] = v
			sum += v
			n++
		}
		fill := 0.0
		if n > 0 {
			fill = sum / float64(n)
		}
		for _, i := range missing {
			out[i][j] = fill
		}
	}
	return out
}
