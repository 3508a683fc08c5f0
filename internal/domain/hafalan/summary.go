package hafalan

import (
	"math"
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// MaxMonthlyAttendance - максимум занятий в месяц для сводки.
const MaxMonthlyAttendance = 15

// SummaryScaleMax - шкала kelancaran в месячных сводках.
const SummaryScaleMax = 100.0

// MonthlySummary - месячная сводка по сантри (старая коллекция).
//
// Ключ документа детерминирован: nama_bulan_tahun. Повторное сохранение
// той же тройки перезаписывает прежнюю сводку (last-write-wins), история
// не накапливается. История по дням ведётся в DailyRecord.
type MonthlySummary struct {
	StudentName       string  `json:"nama"`
	Month             string  `json:"bulan"`
	Year              string  `json:"tahun"`
	ChaptersCompleted []int   `json:"juz"`
	CurrentChapter    int     `json:"juz_sedang"`
	WeightedMemorized float64 `json:"jumlah_hafalan"`
	VersesMemorized   int     `json:"ayat_disetor"`
	VersesSubmitted   int     `json:"ayat_sedang_disetor"`
	AttendanceCount   int     `json:"kehadiran"`
	FluencyRecitation float64 `json:"kelancaran_setoran"`
	FluencyReview     float64 `json:"kelancaran_murojaah"`
	FluencyTadarus    float64 `json:"kelancaran_tadarus"`
	FluencyTotal      float64 `json:"kelancaran_total"`
}

// SummaryKey строит ключ документа сводки.
func SummaryKey(name string, period PeriodKey) string {
	return strings.TrimSpace(name) + "_" + period.Month + "_" + period.Year
}

// Key возвращает ключ документа сводки.
func (s MonthlySummary) Key() string {
	return SummaryKey(s.StudentName, s.Period())
}

// Period возвращает период сводки.
func (s MonthlySummary) Period() PeriodKey {
	return PeriodKey{Month: s.Month, Year: s.Year}
}

// Finalize вычисляет производные поля: взвешенную сумму выученных джузов
// и среднюю kelancaran, округлённую до сотых.
func (s *MonthlySummary) Finalize() {
	s.ChaptersCompleted = parseChapters(s.ChaptersCompleted)
	var total float64
	for _, ch := range s.ChaptersCompleted {
		total += WeightedVerses(ch)
	}
	s.WeightedMemorized = total
	s.FluencyTotal = math.Round((s.FluencyRecitation+s.FluencyReview+s.FluencyTadarus)/3*100) / 100
}

// Validate проверяет сводку перед сохранением.
func (s MonthlySummary) Validate() error {
	if strings.TrimSpace(s.StudentName) == "" {
		return shared.NewDomainError("hafalan", "ValidateSummary", shared.ErrEmptyValue, "student name is required")
	}
	if _, err := NewPeriodKey(s.Month, s.Year); err != nil {
		return err
	}
	if s.CurrentChapter != 0 && !IsKnownChapter(s.CurrentChapter) {
		return shared.NewDomainError("hafalan", "ValidateSummary", shared.ErrValueOutOfRange, "current chapter must be 1..30")
	}
	for _, ch := range s.ChaptersCompleted {
		if !IsKnownChapter(ch) {
			return shared.NewDomainError("hafalan", "ValidateSummary", shared.ErrValueOutOfRange, "completed chapters must be 1..30")
		}
	}
	if s.VersesMemorized < 0 || s.VersesSubmitted < 0 {
		return shared.NewDomainError("hafalan", "ValidateSummary", shared.ErrNegativeValue, "verse counts cannot be negative")
	}
	if s.AttendanceCount < 0 || s.AttendanceCount > MaxMonthlyAttendance {
		return shared.NewDomainError("hafalan", "ValidateSummary", shared.ErrValueOutOfRange, "attendance must be 0..15")
	}
	for _, f := range []float64{s.FluencyRecitation, s.FluencyReview, s.FluencyTadarus} {
		if f < 0 || f > SummaryScaleMax {
			return shared.NewDomainError("hafalan", "ValidateSummary", shared.ErrValueOutOfRange, "fluency must be 0..100")
		}
	}
	return nil
}
