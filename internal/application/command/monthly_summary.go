package command

import (
	"context"
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY SUMMARY COMMANDS
// Legacy monthly collection: one document per santri and month,
// keyed nama_bulan_tahun. Saving again overwrites the previous summary.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertMonthlySummaryCommand is the monthly input form.
type UpsertMonthlySummaryCommand struct {
	StudentName       string  `json:"nama" validate:"required"`
	Month             string  `json:"bulan" validate:"required"`
	Year              string  `json:"tahun" validate:"required"`
	ChaptersCompleted []int   `json:"juz" validate:"dive,min=1,max=30"`
	CurrentChapter    int     `json:"juz_sedang" validate:"min=0,max=30"`
	VersesMemorized   int     `json:"ayat_disetor" validate:"min=0"`
	VersesSubmitted   int     `json:"ayat_sedang_disetor" validate:"min=0"`
	AttendanceCount   int     `json:"kehadiran" validate:"min=0,max=15"`
	FluencyRecitation float64 `json:"kelancaran_setoran" validate:"gte=0,lte=100"`
	FluencyReview     float64 `json:"kelancaran_murojaah" validate:"gte=0,lte=100"`
	FluencyTadarus    float64 `json:"kelancaran_tadarus" validate:"gte=0,lte=100"`
}

// Validate validates the command.
func (c UpsertMonthlySummaryCommand) Validate() error {
	return validateStruct("UpsertMonthlySummary", c)
}

// UpsertMonthlySummaryHandler handles UpsertMonthlySummaryCommand.
type UpsertMonthlySummaryHandler struct {
	students   hafalan.StudentRepository
	summaries  hafalan.SummaryRepository
	invalidate ReportInvalidator
	log        *logger.Logger
}

// NewUpsertMonthlySummaryHandler creates a new UpsertMonthlySummaryHandler.
func NewUpsertMonthlySummaryHandler(
	students hafalan.StudentRepository,
	summaries hafalan.SummaryRepository,
	invalidate ReportInvalidator,
	log *logger.Logger,
) *UpsertMonthlySummaryHandler {
	if invalidate == nil {
		invalidate = nopInvalidator{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &UpsertMonthlySummaryHandler{
		students:   students,
		summaries:  summaries,
		invalidate: invalidate,
		log:        log.With(logger.Component("command")),
	}
}

// Handle executes the command and returns the stored summary with derived fields.
func (h *UpsertMonthlySummaryHandler) Handle(ctx context.Context, cmd UpsertMonthlySummaryCommand) (*hafalan.MonthlySummary, error) {
	cmd.StudentName = strings.TrimSpace(cmd.StudentName)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	period, err := hafalan.NewPeriodKey(cmd.Month, cmd.Year)
	if err != nil {
		return nil, shared.WrapError("command", "UpsertMonthlySummary", shared.ErrValidation, err.Error(), err)
	}
	if _, err := h.students.Get(ctx, cmd.StudentName); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.WrapError("command", "UpsertMonthlySummary", shared.ErrUpstreamUnavailable, "failed to load santri", err)
	}

	sum := hafalan.MonthlySummary{
		StudentName:       cmd.StudentName,
		Month:             period.Month,
		Year:              period.Year,
		ChaptersCompleted: cmd.ChaptersCompleted,
		CurrentChapter:    cmd.CurrentChapter,
		VersesMemorized:   cmd.VersesMemorized,
		VersesSubmitted:   cmd.VersesSubmitted,
		AttendanceCount:   cmd.AttendanceCount,
		FluencyRecitation: cmd.FluencyRecitation,
		FluencyReview:     cmd.FluencyReview,
		FluencyTadarus:    cmd.FluencyTadarus,
	}
	sum.Finalize()
	if err := sum.Validate(); err != nil {
		return nil, err
	}

	if err := h.summaries.Upsert(ctx, sum); err != nil {
		h.log.Error("failed to upsert summary", logger.Err(err), logger.Student(sum.StudentName))
		return nil, shared.WrapError("command", "UpsertMonthlySummary", shared.ErrUpstreamUnavailable, "failed to save summary", err)
	}
	if err := h.invalidate.InvalidatePeriod(ctx, period.String()); err != nil {
		h.log.Warn("report cache invalidation failed", logger.Err(err), logger.Period(period.String()))
	}
	h.log.Info("monthly summary saved", logger.Student(sum.StudentName), logger.Period(period.String()))
	return &sum, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────────────────────────────────

// DeleteMonthlySummaryCommand removes the summary of one santri and month.
type DeleteMonthlySummaryCommand struct {
	StudentName string `validate:"required"`
	Month       string `validate:"required"`
	Year        string `validate:"required"`
}

// DeleteMonthlySummaryHandler handles DeleteMonthlySummaryCommand.
type DeleteMonthlySummaryHandler struct {
	summaries  hafalan.SummaryRepository
	invalidate ReportInvalidator
	log        *logger.Logger
}

// NewDeleteMonthlySummaryHandler creates a new DeleteMonthlySummaryHandler.
func NewDeleteMonthlySummaryHandler(summaries hafalan.SummaryRepository, invalidate ReportInvalidator, log *logger.Logger) *DeleteMonthlySummaryHandler {
	if invalidate == nil {
		invalidate = nopInvalidator{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &DeleteMonthlySummaryHandler{summaries: summaries, invalidate: invalidate, log: log.With(logger.Component("command"))}
}

// Handle executes the command.
func (h *DeleteMonthlySummaryHandler) Handle(ctx context.Context, cmd DeleteMonthlySummaryCommand) error {
	if err := validateStruct("DeleteMonthlySummary", cmd); err != nil {
		return err
	}
	period, err := hafalan.NewPeriodKey(cmd.Month, cmd.Year)
	if err != nil {
		return shared.WrapError("command", "DeleteMonthlySummary", shared.ErrValidation, err.Error(), err)
	}
	key := hafalan.SummaryKey(cmd.StudentName, period)
	if err := h.summaries.Delete(ctx, key); err != nil {
		if shared.IsNotFound(err) {
			return shared.ErrSummaryNotFound
		}
		return shared.WrapError("command", "DeleteMonthlySummary", shared.ErrUpstreamUnavailable, "failed to delete summary", err)
	}
	if err := h.invalidate.InvalidatePeriod(ctx, period.String()); err != nil {
		h.log.Warn("report cache invalidation failed", logger.Err(err), logger.Period(period.String()))
	}
	h.log.Info("monthly summary deleted", logger.String("key", key))
	return nil
}
