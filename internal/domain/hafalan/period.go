package hafalan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// PeriodKey - фильтр отчёта: месяц (индонезийское название) и год.
type PeriodKey struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

// NewPeriodKey создаёт PeriodKey и нормализует название месяца.
func NewPeriodKey(month, year string) (PeriodKey, error) {
	m, ok := timeutil.ParseMonthID(month)
	if !ok {
		return PeriodKey{}, shared.WrapError("hafalan", "NewPeriodKey", shared.ErrInvalidInput,
			"unknown month", fmt.Errorf("%q", month))
	}
	year = strings.TrimSpace(year)
	if y, err := strconv.Atoi(year); err != nil || y < 1900 || y > 9999 {
		return PeriodKey{}, shared.WrapError("hafalan", "NewPeriodKey", shared.ErrInvalidInput,
			"year must be a four digit number", fmt.Errorf("%q", year))
	}
	return PeriodKey{Month: timeutil.MonthNameID(m), Year: year}, nil
}

// PeriodOf возвращает период, к которому относится дата.
func PeriodOf(t time.Time) PeriodKey {
	local := timeutil.ToJakarta(t)
	return PeriodKey{
		Month: timeutil.MonthNameID(local.Month()),
		Year:  strconv.Itoa(local.Year()),
	}
}

// String возвращает период в виде "Mei/2025".
func (p PeriodKey) String() string {
	return p.Month + "/" + p.Year
}

// IsZero проверяет, что период не задан.
func (p PeriodKey) IsZero() bool {
	return p.Month == "" && p.Year == ""
}

// Granularity - гранулярность выборки внутри периода.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityWeekly  Granularity = "weekly"
	GranularityDaily   Granularity = "daily"
)

// ParseGranularity разбирает гранулярность; пустая строка означает monthly.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", GranularityMonthly:
		return GranularityMonthly, nil
	case GranularityWeekly:
		return GranularityWeekly, nil
	case GranularityDaily:
		return GranularityDaily, nil
	default:
		return "", shared.NewDomainError("hafalan", "ParseGranularity", shared.ErrInvalidInput,
			"granularity must be monthly, weekly or daily")
	}
}

// MaxWeekOfMonth - последняя неделя месяца ("Minggu ke-5").
const MaxWeekOfMonth = 5

// WeekLabel возвращает подпись недели, например "Minggu ke-2".
func WeekLabel(week int) string {
	return "Minggu ke-" + strconv.Itoa(week)
}

// PeriodSelector выбирает записи отчёта: период плюс уточнение по неделе или дню.
type PeriodSelector struct {
	Period      PeriodKey   `json:"period"`
	Granularity Granularity `json:"granularity"`
	Week        int         `json:"week,omitempty"`
	Date        string      `json:"date,omitempty"`
}

// Validate проверяет согласованность селектора.
func (s PeriodSelector) Validate() error {
	if s.Period.Month == "" || s.Period.Year == "" {
		return shared.ErrInvalidPeriod
	}
	switch s.Granularity {
	case "", GranularityMonthly:
	case GranularityWeekly:
		if s.Week < 1 || s.Week > MaxWeekOfMonth {
			return shared.NewDomainError("hafalan", "Validate", shared.ErrValueOutOfRange, "week must be 1..5")
		}
	case GranularityDaily:
		d, err := timeutil.ParseDate(s.Date)
		if err != nil {
			return shared.WrapError("hafalan", "Validate", shared.ErrInvalidFormat, "date must be YYYY-MM-DD", err)
		}
		if PeriodOf(d) != s.Period {
			return shared.NewDomainError("hafalan", "Validate", shared.ErrInvalidInput, "date is outside the selected period")
		}
	default:
		return shared.NewDomainError("hafalan", "Validate", shared.ErrInvalidInput, "unknown granularity")
	}
	return nil
}

// Matches проверяет, попадает ли нормализованная запись в селектор.
// Период уже отфильтрован хранилищем; здесь уточняется неделя или день.
func (s PeriodSelector) Matches(rec NormalizedRecord) bool {
	switch s.Granularity {
	case GranularityWeekly:
		if rec.Date.IsZero() {
			return false
		}
		return timeutil.WeekOfMonth(rec.Date) == s.Week
	case GranularityDaily:
		return rec.DateStr == s.Date
	default:
		return true
	}
}

// MatchesRaw применяет селектор к сырому документу до нормализации,
// чтобы счётчики отсева относились только к выбранным записям.
func (s PeriodSelector) MatchesRaw(raw RawRecord) bool {
	rec := NormalizedRecord{Date: parseRecordDate(raw), DateStr: raw.String(FieldDateStr)}
	if rec.DateStr == "" && !rec.Date.IsZero() {
		rec.DateStr = timeutil.FormatDateStr(rec.Date)
	}
	return s.Matches(rec)
}

// String возвращает человекочитаемое описание выборки.
func (s PeriodSelector) String() string {
	switch s.Granularity {
	case GranularityWeekly:
		return WeekLabel(s.Week) + " " + s.Period.String()
	case GranularityDaily:
		return s.Date
	default:
		return s.Period.String()
	}
}
