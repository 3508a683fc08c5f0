package hafalan

import (
	"strings"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Имена полей плоского документа в хранилище. Они совпадают с уже
// накопленными данными и не переименовываются.
const (
	FieldID                = "id"
	FieldName              = "nama"
	FieldDate              = "tanggal"
	FieldDateStr           = "tanggal_str"
	FieldWeekday           = "hari"
	FieldMonth             = "bulan"
	FieldYear              = "tahun"
	FieldAttendance        = "kehadiran"
	FieldChaptersCompleted = "juz_sudah_dihafal"
	FieldCurrentChapter    = "juz_sedang_disetor"
	FieldVersesMemorized   = "ayat_sudah_dihafal"
	FieldVersesSubmitted   = "ayat_sedang_disetor"
	FieldFluencyRecitation = "kelancaran_setoran"
	FieldFluencyReview     = "kelancaran_murojaah"
	FieldFluencyTadarus    = "kelancaran_tadarus"
	FieldCreatedAt         = "created_at"
)

// RawRecord - документ в том виде, в каком его вернуло хранилище.
// Любое поле может отсутствовать или иметь неожиданный тип.
type RawRecord map[string]any

// String возвращает строковое значение поля или пустую строку.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(formatScalar(v))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY RECORD
// ══════════════════════════════════════════════════════════════════════════════

// DailyRecord - типизированная дневная запись сетора.
// После сохранения не изменяется, только удаляется.
type DailyRecord struct {
	ID                string
	StudentName       string
	Date              time.Time
	Attended          bool
	ChaptersCompleted []int
	CurrentChapter    int
	VersesMemorized   int
	VersesSubmitted   int
	FluencyRecitation float64
	FluencyReview     float64
	FluencyTadarus    float64
	CreatedAt         time.Time
}

// Validate проверяет инварианты записи перед сохранением.
func (r DailyRecord) Validate(scaleMax float64) error {
	if strings.TrimSpace(r.StudentName) == "" {
		return shared.NewDomainError("hafalan", "Validate", shared.ErrEmptyValue, "student name is required")
	}
	if r.Date.IsZero() {
		return shared.NewDomainError("hafalan", "Validate", shared.ErrEmptyValue, "date is required")
	}
	if r.CurrentChapter != 0 && !IsKnownChapter(r.CurrentChapter) {
		return shared.NewDomainError("hafalan", "Validate", shared.ErrValueOutOfRange, "current chapter must be 1..30")
	}
	for _, ch := range r.ChaptersCompleted {
		if !IsKnownChapter(ch) {
			return shared.NewDomainError("hafalan", "Validate", shared.ErrValueOutOfRange, "completed chapters must be 1..30")
		}
	}
	if r.VersesMemorized < 0 || r.VersesSubmitted < 0 {
		return shared.NewDomainError("hafalan", "Validate", shared.ErrNegativeValue, "verse counts cannot be negative")
	}
	for _, f := range []float64{r.FluencyRecitation, r.FluencyReview, r.FluencyTadarus} {
		if f < 0 || f > scaleMax {
			return shared.NewDomainError("hafalan", "Validate", shared.ErrValueOutOfRange, "fluency is outside the configured scale")
		}
	}
	return nil
}

// Period возвращает месяц и год записи.
func (r DailyRecord) Period() PeriodKey {
	return PeriodOf(r.Date)
}

// IsSetoranDay проверяет, приходится ли дата на день сетора (Senin, Rabu, Jumat).
func (r DailyRecord) IsSetoranDay() bool {
	return IsSetoranDay(r.Date)
}

// Document превращает запись в плоский документ для хранилища.
func (r DailyRecord) Document() RawRecord {
	attended := 0
	if r.Attended {
		attended = 1
	}
	chapters := make([]int, len(r.ChaptersCompleted))
	copy(chapters, r.ChaptersCompleted)
	period := r.Period()

	doc := RawRecord{
		FieldName:              r.StudentName,
		FieldDate:              timeutil.ToJakarta(r.Date).Format(time.RFC3339),
		FieldDateStr:           timeutil.FormatDateStr(r.Date),
		FieldWeekday:           timeutil.WeekdayNameID(r.Date),
		FieldMonth:             period.Month,
		FieldYear:              period.Year,
		FieldAttendance:        attended,
		FieldChaptersCompleted: chapters,
		FieldCurrentChapter:    r.CurrentChapter,
		FieldVersesMemorized:   r.VersesMemorized,
		FieldVersesSubmitted:   r.VersesSubmitted,
		FieldFluencyRecitation: r.FluencyRecitation,
		FieldFluencyReview:     r.FluencyReview,
		FieldFluencyTadarus:    r.FluencyTadarus,
	}
	if r.ID != "" {
		doc[FieldID] = r.ID
	}
	if !r.CreatedAt.IsZero() {
		doc[FieldCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// IsSetoranDay проверяет, что дата - понедельник, среда или пятница по WIB.
func IsSetoranDay(t time.Time) bool {
	switch timeutil.ToJakarta(t).Weekday() {
	case time.Monday, time.Wednesday, time.Friday:
		return true
	default:
		return false
	}
}
