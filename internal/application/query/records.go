package query

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD VIEWS
// Просмотр журнала: записи за дату, история сантри, сводки периода.
// ══════════════════════════════════════════════════════════════════════════════

// RecordView - DTO дневной записи: сырой документ плюс нормализованный вид.
type RecordView struct {
	ID          string `json:"id"`
	StudentName string `json:"student_name"`
	DateStr     string `json:"date_str"`
	Weekday     string `json:"weekday"`

	// Document - документ как он хранится.
	Document hafalan.RawRecord `json:"document"`

	// Normalized - nil, если запись не прошла бы отсев.
	Normalized *hafalan.NormalizedRecord `json:"normalized,omitempty"`

	// FailedFields - поля, из-за которых запись отсеивается.
	FailedFields []string `json:"failed_fields,omitempty"`
}

func buildViews(n hafalan.Normalizer, raws []hafalan.RawRecord) []RecordView {
	views := make([]RecordView, 0, len(raws))
	for _, raw := range raws {
		v := RecordView{
			ID:          raw.String(hafalan.FieldID),
			StudentName: raw.String(hafalan.FieldName),
			DateStr:     raw.String(hafalan.FieldDateStr),
			Weekday:     raw.String(hafalan.FieldWeekday),
			Document:    raw,
		}
		rec, invalid := n.Normalize(raw)
		if invalid != nil {
			v.FailedFields = invalid.Failed
		} else {
			v.Normalized = &rec
			if v.DateStr == "" {
				v.DateStr = rec.DateStr
			}
			if v.Weekday == "" && !rec.Date.IsZero() {
				v.Weekday = timeutil.WeekdayNameID(rec.Date)
			}
		}
		views = append(views, v)
	}
	return views
}

// ──────────────────────────────────────────────────────────────────────────────
// Records by date
// ──────────────────────────────────────────────────────────────────────────────

// RecordsByDateQuery - записи за одну дату.
type RecordsByDateQuery struct {
	// Date - дата YYYY-MM-DD.
	Date string
}

// Validate проверяет формат даты.
func (q *RecordsByDateQuery) Validate() error {
	q.Date = strings.TrimSpace(q.Date)
	if _, err := timeutil.ParseDate(q.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}

// RecordsByDateResult - записи за дату, отсортированные по имени.
type RecordsByDateResult struct {
	Date    string       `json:"date"`
	Weekday string       `json:"weekday"`
	Records []RecordView `json:"records"`
}

// RecordsByDateHandler обрабатывает RecordsByDateQuery.
type RecordsByDateHandler struct {
	records    hafalan.RecordRepository
	normalizer hafalan.Normalizer
}

// NewRecordsByDateHandler создаёт обработчик.
func NewRecordsByDateHandler(records hafalan.RecordRepository, normalizer hafalan.Normalizer) *RecordsByDateHandler {
	return &RecordsByDateHandler{records: records, normalizer: normalizer}
}

// Handle выполняет запрос.
func (h *RecordsByDateHandler) Handle(ctx context.Context, q RecordsByDateQuery) (*RecordsByDateResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "RecordsByDate", shared.ErrValidation, err.Error(), err)
	}
	raws, err := h.records.FindByDate(ctx, q.Date)
	if err != nil {
		return nil, shared.WrapError("query", "RecordsByDate", shared.ErrUpstreamUnavailable, "failed to load records", err)
	}
	views := buildViews(h.normalizer, raws)
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].StudentName < views[j].StudentName
	})

	d, _ := timeutil.ParseDate(q.Date)
	return &RecordsByDateResult{
		Date:    q.Date,
		Weekday: timeutil.WeekdayNameID(d),
		Records: views,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Student history
// ──────────────────────────────────────────────────────────────────────────────

// StudentHistoryQuery - все записи и сводки одного сантри.
type StudentHistoryQuery struct {
	Name string
}

// Validate проверяет имя.
func (q *StudentHistoryQuery) Validate() error {
	q.Name = strings.TrimSpace(q.Name)
	if q.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// StudentHistoryResult - история сантри, новые записи первыми.
type StudentHistoryResult struct {
	Student   hafalan.Santri           `json:"student"`
	Records   []RecordView             `json:"records"`
	Summaries []hafalan.MonthlySummary `json:"summaries"`
}

// StudentHistoryHandler обрабатывает StudentHistoryQuery.
type StudentHistoryHandler struct {
	students   hafalan.StudentRepository
	records    hafalan.RecordRepository
	summaries  hafalan.SummaryRepository
	normalizer hafalan.Normalizer
}

// NewStudentHistoryHandler создаёт обработчик.
func NewStudentHistoryHandler(
	students hafalan.StudentRepository,
	records hafalan.RecordRepository,
	summaries hafalan.SummaryRepository,
	normalizer hafalan.Normalizer,
) *StudentHistoryHandler {
	return &StudentHistoryHandler{
		students:   students,
		records:    records,
		summaries:  summaries,
		normalizer: normalizer,
	}
}

// Handle выполняет запрос.
func (h *StudentHistoryHandler) Handle(ctx context.Context, q StudentHistoryQuery) (*StudentHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "StudentHistory", shared.ErrValidation, err.Error(), err)
	}
	stud, err := h.students.Get(ctx, q.Name)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.WrapError("query", "StudentHistory", shared.ErrUpstreamUnavailable, "failed to load student", err)
	}

	raws, err := h.records.FindByStudent(ctx, stud.Name)
	if err != nil {
		return nil, shared.WrapError("query", "StudentHistory", shared.ErrUpstreamUnavailable, "failed to load records", err)
	}
	views := buildViews(h.normalizer, raws)
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].DateStr > views[j].DateStr
	})

	sums, err := h.summaries.FindByStudent(ctx, stud.Name)
	if err != nil {
		return nil, shared.WrapError("query", "StudentHistory", shared.ErrUpstreamUnavailable, "failed to load summaries", err)
	}
	sortSummaries(sums)

	return &StudentHistoryResult{Student: stud, Records: views, Summaries: sums}, nil
}

// sortSummaries: по году, затем по месяцу календаря, затем по имени.
func sortSummaries(sums []hafalan.MonthlySummary) {
	monthIdx := func(name string) int {
		m, _ := timeutil.ParseMonthID(name)
		return int(m)
	}
	sort.SliceStable(sums, func(i, j int) bool {
		if sums[i].Year != sums[j].Year {
			return sums[i].Year < sums[j].Year
		}
		if mi, mj := monthIdx(sums[i].Month), monthIdx(sums[j].Month); mi != mj {
			return mi < mj
		}
		return sums[i].StudentName < sums[j].StudentName
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Monthly summaries
// ──────────────────────────────────────────────────────────────────────────────

// ListSummariesQuery - сводки за период.
type ListSummariesQuery struct {
	Month string
	Year  string
}

// ListSummariesHandler обрабатывает ListSummariesQuery.
type ListSummariesHandler struct {
	summaries hafalan.SummaryRepository
}

// NewListSummariesHandler создаёт обработчик.
func NewListSummariesHandler(summaries hafalan.SummaryRepository) *ListSummariesHandler {
	return &ListSummariesHandler{summaries: summaries}
}

// Handle выполняет запрос.
func (h *ListSummariesHandler) Handle(ctx context.Context, q ListSummariesQuery) ([]hafalan.MonthlySummary, error) {
	period, err := hafalan.NewPeriodKey(q.Month, q.Year)
	if err != nil {
		return nil, shared.WrapError("query", "ListSummaries", shared.ErrValidation, err.Error(), err)
	}
	sums, err := h.summaries.FindByPeriod(ctx, period)
	if err != nil {
		return nil, shared.WrapError("query", "ListSummaries", shared.ErrUpstreamUnavailable, "failed to load summaries", err)
	}
	sortSummaries(sums)
	return sums, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Students
// ──────────────────────────────────────────────────────────────────────────────

// ListStudentsHandler возвращает мастер-список, отсортированный по имени.
type ListStudentsHandler struct {
	students hafalan.StudentRepository
}

// NewListStudentsHandler создаёт обработчик.
func NewListStudentsHandler(students hafalan.StudentRepository) *ListStudentsHandler {
	return &ListStudentsHandler{students: students}
}

// Handle выполняет запрос.
func (h *ListStudentsHandler) Handle(ctx context.Context) ([]hafalan.Santri, error) {
	list, err := h.students.List(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "ListStudents", shared.ErrUpstreamUnavailable, "failed to load students", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Export
// ──────────────────────────────────────────────────────────────────────────────

// ExportResult - полный дамп всех коллекций.
type ExportResult struct {
	Students  []hafalan.Santri         `json:"santri"`
	Records   []hafalan.RawRecord      `json:"hafalan_harian"`
	Summaries []hafalan.MonthlySummary `json:"hafalan"`
}

// ExportHandler выгружает все коллекции.
type ExportHandler struct {
	store hafalan.Store
}

// NewExportHandler создаёт обработчик.
func NewExportHandler(store hafalan.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

// Handle выполняет выгрузку.
func (h *ExportHandler) Handle(ctx context.Context) (*ExportResult, error) {
	students, err := h.store.Students().List(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "Export", shared.ErrUpstreamUnavailable, "failed to load students", err)
	}
	records, err := h.store.Records().All(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "Export", shared.ErrUpstreamUnavailable, "failed to load records", err)
	}
	sums, err := h.store.Summaries().All(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "Export", shared.ErrUpstreamUnavailable, "failed to load summaries", err)
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	sortSummaries(sums)
	return &ExportResult{Students: students, Records: records, Summaries: sums}, nil
}
