package command

import (
	"context"
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT MASTER COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// AddStudentCommand registers a santri in the master list.
type AddStudentCommand struct {
	Name   string `json:"nama" validate:"required"`
	Gender string `json:"gender" validate:"required,oneof=L P l p"`
}

// AddStudentHandler handles AddStudentCommand.
type AddStudentHandler struct {
	students hafalan.StudentRepository
	log      *logger.Logger
}

// NewAddStudentHandler creates a new AddStudentHandler.
func NewAddStudentHandler(students hafalan.StudentRepository, log *logger.Logger) *AddStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AddStudentHandler{students: students, log: log.With(logger.Component("command"))}
}

// Handle executes the command. Names are unique.
func (h *AddStudentHandler) Handle(ctx context.Context, cmd AddStudentCommand) (*hafalan.Santri, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Gender = strings.TrimSpace(cmd.Gender)
	if err := validateStruct("AddStudent", cmd); err != nil {
		return nil, err
	}
	s, err := hafalan.NewSantri(cmd.Name, hafalan.Gender(cmd.Gender))
	if err != nil {
		return nil, err
	}

	_, err = h.students.Get(ctx, s.Name)
	switch {
	case err == nil:
		return nil, shared.ErrStudentAlreadyExists
	case !shared.IsNotFound(err):
		return nil, shared.WrapError("command", "AddStudent", shared.ErrUpstreamUnavailable, "failed to load santri", err)
	}

	if err := h.students.Save(ctx, s); err != nil {
		return nil, shared.WrapError("command", "AddStudent", shared.ErrUpstreamUnavailable, "failed to save santri", err)
	}
	h.log.Info("santri added", logger.Student(s.Name), logger.String("gender", string(s.Gender)))
	return &s, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────────────────────────────────

// DeleteStudentCommand removes a santri from the master list.
type DeleteStudentCommand struct {
	Name string `validate:"required"`

	// Confirm must be set when the santri still has stored records.
	// The records themselves are kept and become orphaned.
	Confirm bool
}

// DeleteStudentResult reports how many documents still reference the name.
type DeleteStudentResult struct {
	Name              string `json:"nama"`
	OrphanedRecords   int    `json:"orphaned_records"`
	OrphanedSummaries int    `json:"orphaned_summaries"`
}

// DeleteStudentHandler handles DeleteStudentCommand.
type DeleteStudentHandler struct {
	students  hafalan.StudentRepository
	records   hafalan.RecordRepository
	summaries hafalan.SummaryRepository
	log       *logger.Logger
}

// NewDeleteStudentHandler creates a new DeleteStudentHandler.
func NewDeleteStudentHandler(
	students hafalan.StudentRepository,
	records hafalan.RecordRepository,
	summaries hafalan.SummaryRepository,
	log *logger.Logger,
) *DeleteStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DeleteStudentHandler{
		students:  students,
		records:   records,
		summaries: summaries,
		log:       log.With(logger.Component("command")),
	}
}

// Handle executes the command.
func (h *DeleteStudentHandler) Handle(ctx context.Context, cmd DeleteStudentCommand) (*DeleteStudentResult, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := validateStruct("DeleteStudent", cmd); err != nil {
		return nil, err
	}
	if _, err := h.students.Get(ctx, cmd.Name); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.WrapError("command", "DeleteStudent", shared.ErrUpstreamUnavailable, "failed to load santri", err)
	}

	records, err := h.records.CountByStudent(ctx, cmd.Name)
	if err != nil {
		return nil, shared.WrapError("command", "DeleteStudent", shared.ErrUpstreamUnavailable, "failed to count records", err)
	}
	summaries, err := h.summaries.CountByStudent(ctx, cmd.Name)
	if err != nil {
		return nil, shared.WrapError("command", "DeleteStudent", shared.ErrUpstreamUnavailable, "failed to count summaries", err)
	}
	if records+summaries > 0 && !cmd.Confirm {
		return nil, shared.ErrStudentHasRecords
	}

	if err := h.students.Delete(ctx, cmd.Name); err != nil {
		return nil, shared.WrapError("command", "DeleteStudent", shared.ErrUpstreamUnavailable, "failed to delete santri", err)
	}
	h.log.Info("santri deleted",
		logger.Student(cmd.Name),
		logger.Int("orphaned_records", records),
		logger.Int("orphaned_summaries", summaries),
	)
	return &DeleteStudentResult{Name: cmd.Name, OrphanedRecords: records, OrphanedSummaries: summaries}, nil
}
