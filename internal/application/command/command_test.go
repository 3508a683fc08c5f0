package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/memory"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

type recordingInvalidator struct {
	periods []string
	all     int
}

func (r *recordingInvalidator) InvalidatePeriod(_ context.Context, p string) error {
	r.periods = append(r.periods, p)
	return nil
}

func (r *recordingInvalidator) InvalidateAll(context.Context) error {
	r.all++
	return nil
}

func seededStore(t *testing.T, names ...string) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, n := range names {
		require.NoError(t, store.Students().Save(context.Background(), hafalan.Santri{Name: n, Gender: hafalan.GenderMale}))
	}
	return store
}

func TestSaveDailyRecord(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Ahmad")
	inv := &recordingInvalidator{}
	h := NewSaveDailyRecordHandler(store.Students(), store.Records(), inv, 10, logger.Discard())

	res, err := h.Handle(ctx, SaveDailyRecordCommand{
		StudentName:       " Ahmad ",
		Date:              "2025-05-05",
		Attended:          true,
		ChaptersCompleted: []int{30, 29},
		CurrentChapter:    28,
		VersesMemorized:   10,
		VersesSubmitted:   5,
		FluencyRecitation: 8,
		FluencyReview:     7,
		FluencyTadarus:    9,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "Senin", res.Weekday)
	assert.Equal(t, hafalan.PeriodKey{Month: "Mei", Year: "2025"}, res.Period)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Zeroed)
	assert.Equal(t, []string{"Mei/2025"}, inv.periods)

	docs, err := store.Records().FindByPeriod(ctx, res.Period)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Ahmad", docs[0].String(hafalan.FieldName))
	assert.Equal(t, "2025-05-05", docs[0].String(hafalan.FieldDateStr))
	assert.Equal(t, res.ID, docs[0].String(hafalan.FieldID))

	rec, invalid := hafalan.NewNormalizer(10).Normalize(docs[0])
	require.Nil(t, invalid)
	assert.Equal(t, []int{29, 30}, rec.ChaptersCompleted)
	assert.True(t, rec.Attended)
}

func TestSaveDailyRecord_AbsentIsZeroed(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Bilal")
	h := NewSaveDailyRecordHandler(store.Students(), store.Records(), nil, 10, logger.Discard())

	res, err := h.Handle(ctx, SaveDailyRecordCommand{
		StudentName:       "Bilal",
		Date:              "2025-05-06",
		VersesMemorized:   40,
		VersesSubmitted:   6,
		CurrentChapter:    30,
		FluencyRecitation: 9,
		FluencyReview:     9,
		FluencyTadarus:    9,
	})
	require.NoError(t, err)
	assert.True(t, res.Zeroed)
	// Selasa is not a setoran day.
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Selasa")

	docs, err := store.Records().FindByStudent(ctx, "Bilal")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	rec, invalid := hafalan.NewNormalizer(10).Normalize(docs[0])
	require.Nil(t, invalid)
	assert.Equal(t, 40.0, rec.VersesMemorized)
	assert.Equal(t, 0.0, rec.VersesSubmitted)
	assert.Equal(t, 0.0, rec.FluencyRecitation.Value)
	assert.False(t, rec.Attended)
}

func TestSaveDailyRecord_Rejects(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Ahmad")
	h := NewSaveDailyRecordHandler(store.Students(), store.Records(), nil, 10, logger.Discard())

	base := SaveDailyRecordCommand{StudentName: "Ahmad", Date: "2025-05-05", Attended: true}

	tests := []struct {
		name   string
		mutate func(*SaveDailyRecordCommand)
		kind   error
	}{
		{"unknown student", func(c *SaveDailyRecordCommand) { c.StudentName = "Ghost" }, shared.ErrNotFound},
		{"missing name", func(c *SaveDailyRecordCommand) { c.StudentName = "" }, shared.ErrValidation},
		{"bad date", func(c *SaveDailyRecordCommand) { c.Date = "05/05/2025" }, shared.ErrValidation},
		{"negative verses", func(c *SaveDailyRecordCommand) { c.VersesSubmitted = -1 }, shared.ErrValidation},
		{"chapter out of range", func(c *SaveDailyRecordCommand) { c.CurrentChapter = 31 }, shared.ErrValidation},
		{"completed chapter out of range", func(c *SaveDailyRecordCommand) { c.ChaptersCompleted = []int{0} }, shared.ErrValidation},
		{"fluency above scale", func(c *SaveDailyRecordCommand) { c.FluencyReview = 11 }, shared.ErrValueOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := base
			tt.mutate(&cmd)
			_, err := h.Handle(ctx, cmd)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	all, err := store.Records().All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSaveDailyRecord_UpstreamFailure(t *testing.T) {
	store := seededStore(t, "Ahmad")
	h := NewSaveDailyRecordHandler(store.Students(), store.Records(), nil, 10, logger.Discard())
	store.FailWith = errors.New("connection reset")

	_, err := h.Handle(context.Background(), SaveDailyRecordCommand{StudentName: "Ahmad", Date: "2025-05-05"})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
}

func TestDeleteDailyRecord(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Ahmad")
	id := store.PutRaw(hafalan.RawRecord{hafalan.FieldName: "Ahmad"})
	inv := &recordingInvalidator{}
	h := NewDeleteDailyRecordHandler(store.Records(), inv, logger.Discard())

	require.NoError(t, h.Handle(ctx, DeleteDailyRecordCommand{ID: id}))
	assert.Equal(t, 1, inv.all)

	err := h.Handle(ctx, DeleteDailyRecordCommand{ID: id})
	assert.True(t, shared.IsNotFound(err))

	err = h.Handle(ctx, DeleteDailyRecordCommand{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpsertMonthlySummary_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Citra")
	inv := &recordingInvalidator{}
	h := NewUpsertMonthlySummaryHandler(store.Students(), store.Summaries(), inv, logger.Discard())

	cmd := UpsertMonthlySummaryCommand{
		StudentName:       "Citra",
		Month:             "mei",
		Year:              "2025",
		ChaptersCompleted: []int{30, 30},
		AttendanceCount:   12,
		FluencyRecitation: 80,
		FluencyReview:     70,
		FluencyTadarus:    90,
	}
	sum, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, "Mei", sum.Month)
	assert.Equal(t, []int{30}, sum.ChaptersCompleted)
	assert.Equal(t, hafalan.WeightedVerses(30), sum.WeightedMemorized)
	assert.Equal(t, 80.0, sum.FluencyTotal)
	assert.Equal(t, "Citra_Mei_2025", sum.Key())

	cmd.AttendanceCount = 14
	_, err = h.Handle(ctx, cmd)
	require.NoError(t, err)

	list, err := store.Summaries().FindByStudent(ctx, "Citra")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 14, list[0].AttendanceCount)
	assert.Equal(t, []string{"Mei/2025", "Mei/2025"}, inv.periods)

	cmd.AttendanceCount = 16
	_, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrValidation)

	cmd.AttendanceCount = 1
	cmd.Month = "Maybe"
	_, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteMonthlySummary(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Citra")
	require.NoError(t, store.Summaries().Upsert(ctx, hafalan.MonthlySummary{StudentName: "Citra", Month: "Mei", Year: "2025"}))
	h := NewDeleteMonthlySummaryHandler(store.Summaries(), nil, logger.Discard())

	require.NoError(t, h.Handle(ctx, DeleteMonthlySummaryCommand{StudentName: "Citra", Month: "Mei", Year: "2025"}))
	err := h.Handle(ctx, DeleteMonthlySummaryCommand{StudentName: "Citra", Month: "Mei", Year: "2025"})
	assert.True(t, shared.IsNotFound(err))
}

func TestAddStudent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	h := NewAddStudentHandler(store.Students(), logger.Discard())

	s, err := h.Handle(ctx, AddStudentCommand{Name: " Dewi ", Gender: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Dewi", s.Name)
	assert.Equal(t, hafalan.GenderFemale, s.Gender)

	_, err = h.Handle(ctx, AddStudentCommand{Name: "Dewi", Gender: "P"})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = h.Handle(ctx, AddStudentCommand{Name: "Eko", Gender: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gender")
}

func TestDeleteStudent_RequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "Umar", "Fatimah")
	store.PutRaw(hafalan.RawRecord{hafalan.FieldName: "Umar"})
	store.PutRaw(hafalan.RawRecord{hafalan.FieldName: "Umar"})
	h := NewDeleteStudentHandler(store.Students(), store.Records(), store.Summaries(), logger.Discard())

	_, err := h.Handle(ctx, DeleteStudentCommand{Name: "Umar"})
	assert.ErrorIs(t, err, shared.ErrConfirmationRequired)

	res, err := h.Handle(ctx, DeleteStudentCommand{Name: "Umar", Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.OrphanedRecords)

	// Records stay behind.
	n, err := store.Records().CountByStudent(ctx, "Umar")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err = h.Handle(ctx, DeleteStudentCommand{Name: "Fatimah"})
	require.NoError(t, err)
	assert.Zero(t, res.OrphanedRecords)

	_, err = h.Handle(ctx, DeleteStudentCommand{Name: "Fatimah"})
	assert.True(t, shared.IsNotFound(err))
}
