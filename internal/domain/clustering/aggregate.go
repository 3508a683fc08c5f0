package clustering

import (
	"fmt"
	"sort"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEATURE AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

type accumulator struct {
	rows                 int
	memorized, submitted float64
	attended             float64
	fluency              [4]mean
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(s hafalan.Score) {
	if s.Valid {
		m.sum += s.Value
		m.n++
	}
}

func (m mean) score() hafalan.Score {
	if m.n == 0 {
		return hafalan.Score{}
	}
	return hafalan.ScoreOf(m.sum / float64(m.n))
}

// Aggregate сводит нормализованные записи к одной строке на сантри.
// Каждое поле - среднее по записям сантри; отсутствующая kelancaran
// пропускается. Сантри без записей в выходе не появляются.
// Результат отсортирован по имени, поэтому порядок входа не влияет на выход.
func Aggregate(records []hafalan.NormalizedRecord) []StudentFeatureRow {
	acc := make(map[string]*accumulator)
	for _, rec := range records {
		a, ok := acc[rec.StudentName]
		if !ok {
			a = &accumulator{}
			acc[rec.StudentName] = a
		}
		a.rows++
		a.memorized += rec.WeightedMemorized
		a.submitted += rec.WeightedSubmitted
		if rec.Attended {
			a.attended++
		}
		a.fluency[0].add(rec.FluencyRecitation)
		a.fluency[1].add(rec.FluencyReview)
		a.fluency[2].add(rec.FluencyTadarus)
		a.fluency[3].add(rec.FluencyTotal())
	}

	names := make([]string, 0, len(acc))
	for name := range acc {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]StudentFeatureRow, 0, len(names))
	for _, name := range names {
		a := acc[name]
		n := float64(a.rows)
		out = append(out, StudentFeatureRow{
			StudentName:       name,
			RecordCount:       a.rows,
			WeightedMemorized: a.memorized / n,
			WeightedSubmitted: a.submitted / n,
			FluencyRecitation: a.fluency[0].score(),
			FluencyReview:     a.fluency[1].score(),
			FluencyTadarus:    a.fluency[2].score(),
			FluencyTotal:      a.fluency[3].score(),
			AttendanceRate:    a.attended / n,
		})
	}
	return out
}

// RequireStudents проверяет, что сантри не меньше, чем кластеров.
func RequireStudents(rows []StudentFeatureRow, k int) error {
	if len(rows) < k {
		return shared.WrapError("clustering", "Aggregate", shared.ErrInsufficientData,
			"fewer students than clusters", fmt.Errorf("students=%d k=%d", len(rows), k))
	}
	return nil
}
