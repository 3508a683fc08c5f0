package hafalan

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD NORMALIZER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultScaleMax - верхняя граница шкалы kelancaran для дневных записей.
const DefaultScaleMax = 10.0

// Score - значение kelancaran, которое может отсутствовать.
type Score struct {
	Value float64
	Valid bool
}

// ScoreOf создаёт присутствующее значение.
func ScoreOf(v float64) Score {
	return Score{Value: v, Valid: true}
}

// MarshalJSON пишет null для отсутствующего значения.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON читает число или null.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ScoreOf(v)
	return nil
}

// NormalizedRecord - очищенная строка признаков одной дневной записи.
type NormalizedRecord struct {
	ID                string    `json:"id,omitempty"`
	StudentName       string    `json:"student_name"`
	Date              time.Time `json:"date"`
	DateStr           string    `json:"date_str,omitempty"`
	Attended          bool      `json:"attended"`
	ChaptersCompleted []int     `json:"chapters_completed"`
	CurrentChapter    int       `json:"current_chapter"`
	VersesMemorized   float64   `json:"verses_memorized"`
	VersesSubmitted   float64   `json:"verses_submitted"`
	FluencyRecitation Score     `json:"fluency_recitation"`
	FluencyReview     Score     `json:"fluency_review"`
	FluencyTadarus    Score     `json:"fluency_tadarus"`
	WeightedMemorized float64   `json:"weighted_memorized"`
	WeightedSubmitted float64   `json:"weighted_submitted"`
}

// FluencyTotal - среднее присутствующих оценок kelancaran.
func (r NormalizedRecord) FluencyTotal() Score {
	var sum float64
	var n int
	for _, s := range []Score{r.FluencyRecitation, r.FluencyReview, r.FluencyTadarus} {
		if s.Valid {
			sum += s.Value
			n++
		}
	}
	if n == 0 {
		return Score{}
	}
	return ScoreOf(sum / float64(n))
}

// InvalidRecord - запись, отброшенная из-за обязательных полей,
// которые не удалось привести к числу.
type InvalidRecord struct {
	ID          string   `json:"id,omitempty"`
	StudentName string   `json:"student_name,omitempty"`
	Failed      []string `json:"failed_fields"`
}

// Error реализует интерфейс error.
func (e *InvalidRecord) Error() string {
	return fmt.Sprintf("record %q (%s) missing fields: %s", e.ID, e.StudentName, strings.Join(e.Failed, ", "))
}

// Is позволяет сравнивать с shared.ErrMissingField через errors.Is.
func (e *InvalidRecord) Is(target error) bool {
	return target == shared.ErrMissingField
}

// Screening - счётчики строк до и после отсева.
type Screening struct {
	Before  int             `json:"before"`
	After   int             `json:"after"`
	Dropped []InvalidRecord `json:"dropped,omitempty"`
}

// Normalizer приводит сырые документы к NormalizedRecord.
type Normalizer struct {
	scaleMax float64
}

// NewNormalizer создаёт нормализатор для шкалы [0, scaleMax].
func NewNormalizer(scaleMax float64) Normalizer {
	if scaleMax <= 0 || math.IsNaN(scaleMax) {
		scaleMax = DefaultScaleMax
	}
	return Normalizer{scaleMax: scaleMax}
}

// ScaleMax возвращает верхнюю границу шкалы.
func (n Normalizer) ScaleMax() float64 {
	return n.scaleMax
}

// Normalize разбирает один документ.
// Возвращает либо запись, либо InvalidRecord со списком проблемных полей.
// Kelancaran вне шкалы становится отсутствующим, но строку не отбрасывает.
func (n Normalizer) Normalize(raw RawRecord) (NormalizedRecord, *InvalidRecord) {
	rec := NormalizedRecord{
		ID:          raw.String(FieldID),
		StudentName: raw.String(FieldName),
		DateStr:     raw.String(FieldDateStr),
		Attended:    isTruthy(raw[FieldAttendance]),
	}
	rec.Date = parseRecordDate(raw)
	if rec.DateStr == "" && !rec.Date.IsZero() {
		rec.DateStr = timeutil.FormatDateStr(rec.Date)
	}

	rec.FluencyRecitation = n.score(raw[FieldFluencyRecitation])
	rec.FluencyReview = n.score(raw[FieldFluencyReview])
	rec.FluencyTadarus = n.score(raw[FieldFluencyTadarus])

	var failed []string
	if rec.StudentName == "" {
		failed = append(failed, FieldName)
	}

	chapter, ok := toNumber(raw[FieldCurrentChapter])
	if !ok || chapter < 0 || chapter != math.Trunc(chapter) {
		failed = append(failed, FieldCurrentChapter)
	}
	memorized, ok := toNumber(raw[FieldVersesMemorized])
	if !ok || memorized < 0 {
		failed = append(failed, FieldVersesMemorized)
	}
	submitted, ok := toNumber(raw[FieldVersesSubmitted])
	if !ok || submitted < 0 {
		failed = append(failed, FieldVersesSubmitted)
	}
	if len(failed) > 0 {
		return NormalizedRecord{}, &InvalidRecord{ID: rec.ID, StudentName: rec.StudentName, Failed: failed}
	}

	rec.CurrentChapter = int(chapter)
	rec.VersesMemorized = memorized
	rec.VersesSubmitted = submitted
	rec.ChaptersCompleted = parseChapters(raw[FieldChaptersCompleted])

	for _, ch := range rec.ChaptersCompleted {
		rec.WeightedMemorized += WeightedVerses(ch)
	}
	if rec.CurrentChapter > 0 {
		rec.WeightedMemorized += memorized * DifficultyFactor(rec.CurrentChapter)
		rec.WeightedSubmitted = submitted * DifficultyFactor(rec.CurrentChapter)
	}
	return rec, nil
}

// NormalizeAll нормализует пачку документов и считает отсев.
func (n Normalizer) NormalizeAll(raws []RawRecord) ([]NormalizedRecord, Screening) {
	out := make([]NormalizedRecord, 0, len(raws))
	screening := Screening{Before: len(raws)}
	for _, raw := range raws {
		rec, invalid := n.Normalize(raw)
		if invalid != nil {
			screening.Dropped = append(screening.Dropped, *invalid)
			continue
		}
		out = append(out, rec)
	}
	screening.After = len(out)
	return out, screening
}

func (n Normalizer) score(v any) Score {
	f, ok := toNumber(v)
	if !ok || f < 0 || f > n.scaleMax {
		return Score{}
	}
	return ScoreOf(f)
}

// ──────────────────────────────────────────────────────────────────────────────
// Coercion helpers
// ──────────────────────────────────────────────────────────────────────────────

var truthyMarkers = map[string]struct{}{
	"1":     {},
	"true":  {},
	"hadir": {},
	"ya":    {},
}

// isTruthy: отсутствие отметки означает "не присутствовал".
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	_, ok := truthyMarkers[strings.ToLower(strings.TrimSpace(formatScalar(v)))]
	return ok
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseChapters принимает массив или строку вида "1, 2, 30".
// Нераспознанные элементы пропускаются, дубликаты удаляются.
func parseChapters(v any) []int {
	var items []any
	switch x := v.(type) {
	case nil:
		return []int{}
	case string:
		for _, part := range strings.Split(x, ",") {
			items = append(items, part)
		}
	case []any:
		items = x
	case []int:
		for _, ch := range x {
			items = append(items, ch)
		}
	case []float64:
		for _, ch := range x {
			items = append(items, ch)
		}
	case []string:
		for _, ch := range x {
			items = append(items, ch)
		}
	default:
		items = []any{x}
	}

	seen := make(map[int]struct{}, len(items))
	out := make([]int, 0, len(items))
	for _, item := range items {
		f, ok := toNumber(item)
		if !ok || f != math.Trunc(f) {
			continue
		}
		ch := int(f)
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

func parseRecordDate(raw RawRecord) time.Time {
	switch v := raw[FieldDate].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			return t
		}
		if t, err := timeutil.ParseDate(v); err == nil {
			return t
		}
	}
	if t, err := timeutil.ParseDate(raw.String(FieldDateStr)); err == nil {
		return t
	}
	return time.Time{}
}
