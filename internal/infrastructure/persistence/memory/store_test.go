package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

func TestRecords_PeriodFilterAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Records().Save(ctx, hafalan.DailyRecord{
		StudentName: "Ahmad",
		Date:        timeutil.Date(2025, 5, 12),
		Attended:    true,
	})
	require.NoError(t, err)
	s.PutRaw(hafalan.RawRecord{hafalan.FieldName: "Bilal", hafalan.FieldMonth: "Juni", hafalan.FieldYear: "2025"})

	docs, err := s.Records().FindByPeriod(ctx, hafalan.PeriodKey{Month: "Mei", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].String(hafalan.FieldID))
	assert.Equal(t, 1, s.Loads)

	all, err := s.Records().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Records().Delete(ctx, id))
	assert.True(t, shared.IsNotFound(s.Records().Delete(ctx, id)))
}

func TestSummaries_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.Summaries()

	require.NoError(t, repo.Upsert(ctx, hafalan.MonthlySummary{StudentName: "Aisyah", Month: "Mei", Year: "2025", AttendanceCount: 3}))
	require.NoError(t, repo.Upsert(ctx, hafalan.MonthlySummary{StudentName: "Aisyah", Month: "Mei", Year: "2025", AttendanceCount: 9}))

	list, err := repo.FindByPeriod(ctx, hafalan.PeriodKey{Month: "Mei", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 9, list[0].AttendanceCount)

	require.NoError(t, repo.Delete(ctx, "Aisyah_Mei_2025"))
	assert.True(t, shared.IsNotFound(repo.Delete(ctx, "Aisyah_Mei_2025")))
}

func TestStudents_SortedAndFailWith(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Students().Save(ctx, hafalan.Santri{Name: "Zaid", Gender: hafalan.GenderMale}))
	require.NoError(t, s.Students().Save(ctx, hafalan.Santri{Name: "Aisyah", Gender: hafalan.GenderFemale}))

	list, err := s.Students().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Aisyah", list[0].Name)

	down := errors.New("down")
	s.FailWith = down
	assert.ErrorIs(t, s.Ping(ctx), down)
	_, err = s.Students().List(ctx)
	assert.ErrorIs(t, err, down)
	_, err = s.Records().FindByPeriod(ctx, hafalan.PeriodKey{Month: "Mei", Year: "2025"})
	assert.ErrorIs(t, err, down)
}
