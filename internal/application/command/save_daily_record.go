package command

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE DAILY RECORD COMMAND
// Appends one day of setoran for a santri. Records are never updated in place.
// ══════════════════════════════════════════════════════════════════════════════

// SaveDailyRecordCommand is the coach's daily input form.
type SaveDailyRecordCommand struct {
	StudentName string `json:"nama" validate:"required"`

	// Date is YYYY-MM-DD in WIB.
	Date string `json:"tanggal" validate:"required"`

	Attended          bool    `json:"kehadiran"`
	ChaptersCompleted []int   `json:"juz_sudah_dihafal" validate:"dive,min=1,max=30"`
	CurrentChapter    int     `json:"juz_sedang_disetor" validate:"min=0,max=30"`
	VersesMemorized   int     `json:"ayat_sudah_dihafal" validate:"min=0"`
	VersesSubmitted   int     `json:"ayat_sedang_disetor" validate:"min=0"`
	FluencyRecitation float64 `json:"kelancaran_setoran" validate:"gte=0"`
	FluencyReview     float64 `json:"kelancaran_murojaah" validate:"gte=0"`
	FluencyTadarus    float64 `json:"kelancaran_tadarus" validate:"gte=0"`
}

// Validate validates the command.
func (c SaveDailyRecordCommand) Validate() error {
	return validateStruct("SaveDailyRecord", c)
}

// SaveDailyRecordResult describes the stored record.
type SaveDailyRecordResult struct {
	ID      string            `json:"id"`
	Period  hafalan.PeriodKey `json:"period"`
	Weekday string            `json:"weekday"`

	// Zeroed is true when absence forced submission and fluency to zero.
	Zeroed bool `json:"zeroed"`

	// Warnings are non-fatal remarks, e.g. input on a non-setoran day.
	Warnings []string `json:"warnings,omitempty"`
}

// SaveDailyRecordHandler handles SaveDailyRecordCommand.
type SaveDailyRecordHandler struct {
	students   hafalan.StudentRepository
	records    hafalan.RecordRepository
	invalidate ReportInvalidator
	scaleMax   float64
	log        *logger.Logger
	now        func() time.Time
}

// NewSaveDailyRecordHandler creates a new SaveDailyRecordHandler.
func NewSaveDailyRecordHandler(
	students hafalan.StudentRepository,
	records hafalan.RecordRepository,
	invalidate ReportInvalidator,
	scaleMax float64,
	log *logger.Logger,
) *SaveDailyRecordHandler {
	if invalidate == nil {
		invalidate = nopInvalidator{}
	}
	if scaleMax <= 0 {
		scaleMax = hafalan.DefaultScaleMax
	}
	if log == nil {
		log = logger.Default()
	}
	return &SaveDailyRecordHandler{
		students:   students,
		records:    records,
		invalidate: invalidate,
		scaleMax:   scaleMax,
		log:        log.With(logger.Component("command")),
		now:        time.Now,
	}
}

// Handle executes the command.
func (h *SaveDailyRecordHandler) Handle(ctx context.Context, cmd SaveDailyRecordCommand) (*SaveDailyRecordResult, error) {
	cmd.StudentName = strings.TrimSpace(cmd.StudentName)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	date, err := timeutil.ParseDate(cmd.Date)
	if err != nil {
		return nil, shared.WrapError("command", "SaveDailyRecord", shared.ErrValidation, "tanggal must be YYYY-MM-DD", err)
	}

	if _, err := h.students.Get(ctx, cmd.StudentName); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.WrapError("command", "SaveDailyRecord", shared.ErrUpstreamUnavailable, "failed to load santri", err)
	}

	rec := hafalan.DailyRecord{
		ID:                uuid.NewString(),
		StudentName:       cmd.StudentName,
		Date:              date,
		Attended:          cmd.Attended,
		ChaptersCompleted: cmd.ChaptersCompleted,
		CurrentChapter:    cmd.CurrentChapter,
		VersesMemorized:   cmd.VersesMemorized,
		VersesSubmitted:   cmd.VersesSubmitted,
		FluencyRecitation: cmd.FluencyRecitation,
		FluencyReview:     cmd.FluencyReview,
		FluencyTadarus:    cmd.FluencyTadarus,
		CreatedAt:         h.now().UTC(),
	}

	result := &SaveDailyRecordResult{
		ID:      rec.ID,
		Period:  rec.Period(),
		Weekday: timeutil.WeekdayNameID(date),
	}

	// Absent santri keep cumulative memorization; the day's work is zero.
	if !rec.Attended {
		rec.VersesSubmitted = 0
		rec.FluencyRecitation = 0
		rec.FluencyReview = 0
		rec.FluencyTadarus = 0
		result.Zeroed = true
	}
	if !rec.IsSetoranDay() {
		result.Warnings = append(result.Warnings,
			result.Weekday+" is not a setoran day (Senin, Rabu, Jumat)")
	}

	if err := rec.Validate(h.scaleMax); err != nil {
		return nil, err
	}

	id, err := h.records.Save(ctx, rec)
	if err != nil {
		h.log.Error("failed to save daily record", logger.Err(err), logger.Student(rec.StudentName))
		return nil, shared.WrapError("command", "SaveDailyRecord", shared.ErrUpstreamUnavailable, "failed to save record", err)
	}
	result.ID = id

	if err := h.invalidate.InvalidatePeriod(ctx, result.Period.String()); err != nil {
		h.log.Warn("report cache invalidation failed", logger.Err(err), logger.Period(result.Period.String()))
	}

	h.log.Info("daily record saved",
		logger.RecordID(id),
		logger.Student(rec.StudentName),
		logger.String("date", timeutil.FormatDateStr(date)),
		logger.Bool("attended", rec.Attended),
	)
	return result, nil
}
