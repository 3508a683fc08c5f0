package command

import (
	"context"
	"errors"
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE DAILY RECORD COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteDailyRecordCommand removes one record by its id.
type DeleteDailyRecordCommand struct {
	ID string
}

// Validate validates the command.
func (c DeleteDailyRecordCommand) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("delete_daily_record: id is required")
	}
	return nil
}

// DeleteDailyRecordHandler handles DeleteDailyRecordCommand.
type DeleteDailyRecordHandler struct {
	records    hafalan.RecordRepository
	invalidate ReportInvalidator
	log        *logger.Logger
}

// NewDeleteDailyRecordHandler creates a new DeleteDailyRecordHandler.
func NewDeleteDailyRecordHandler(records hafalan.RecordRepository, invalidate ReportInvalidator, log *logger.Logger) *DeleteDailyRecordHandler {
	if invalidate == nil {
		invalidate = nopInvalidator{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &DeleteDailyRecordHandler{records: records, invalidate: invalidate, log: log.With(logger.Component("command"))}
}

// Handle executes the command.
func (h *DeleteDailyRecordHandler) Handle(ctx context.Context, cmd DeleteDailyRecordCommand) error {
	if err := cmd.Validate(); err != nil {
		return shared.WrapError("command", "DeleteDailyRecord", shared.ErrValidation, err.Error(), err)
	}
	if err := h.records.Delete(ctx, strings.TrimSpace(cmd.ID)); err != nil {
		if shared.IsNotFound(err) {
			return shared.ErrRecordNotFound
		}
		return shared.WrapError("command", "DeleteDailyRecord", shared.ErrUpstreamUnavailable, "failed to delete record", err)
	}
	// The id alone does not tell which period the record belonged to.
	if err := h.invalidate.InvalidateAll(ctx); err != nil {
		h.log.Warn("report cache invalidation failed", logger.Err(err))
	}
	h.log.Info("daily record deleted", logger.RecordID(cmd.ID))
	return nil
}
