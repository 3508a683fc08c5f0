package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "hafalan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecords_SaveFindNormalize(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	repo := store.Records()

	rec := hafalan.DailyRecord{
		StudentName:       "Ahmad",
		Date:              timeutil.Date(2025, 5, 12),
		Attended:          true,
		ChaptersCompleted: []int{30},
		CurrentChapter:    29,
		VersesMemorized:   12,
		VersesSubmitted:   4,
		FluencyRecitation: 8,
		FluencyReview:     7.5,
		FluencyTadarus:    9,
	}
	id, err := repo.Save(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	docs, err := repo.FindByPeriod(ctx, hafalan.PeriodKey{Month: "Mei", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].String(hafalan.FieldID))
	assert.Equal(t, "Senin", docs[0].String(hafalan.FieldWeekday))

	norm, invalid := hafalan.NewNormalizer(10).Normalize(docs[0])
	require.Nil(t, invalid)
	assert.Equal(t, "2025-05-12", norm.DateStr)
	assert.Equal(t, []int{30}, norm.ChaptersCompleted)
	expected := hafalan.WeightedVerses(30) + 12*hafalan.DifficultyFactor(29)
	assert.InDelta(t, expected, norm.WeightedMemorized, 1e-9)
	assert.InDelta(t, 7.5, norm.FluencyReview.Value, 1e-9)

	other, err := repo.FindByPeriod(ctx, hafalan.PeriodKey{Month: "Juni", Year: "2025"})
	require.NoError(t, err)
	assert.Empty(t, other)

	byDate, err := repo.FindByDate(ctx, "2025-05-12")
	require.NoError(t, err)
	assert.Len(t, byDate, 1)

	n, err := repo.CountByStudent(ctx, "Ahmad")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Delete(ctx, id))
	assert.True(t, shared.IsNotFound(repo.Delete(ctx, id)))
}

func TestRecords_LegacyDocumentsKeepShape(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)

	_, err := store.Insert(ctx, hafalan.RawRecord{
		hafalan.FieldName:            "Bilal",
		hafalan.FieldMonth:           "Mei",
		hafalan.FieldYear:            "2025",
		hafalan.FieldDateStr:         "2025-05-07",
		hafalan.FieldCurrentChapter:  "tiga puluh",
		hafalan.FieldVersesMemorized: "10",
	})
	require.NoError(t, err)

	docs, err := store.Records().FindByStudent(ctx, "Bilal")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, invalid := hafalan.NewNormalizer(10).Normalize(docs[0])
	require.NotNil(t, invalid)
	assert.ElementsMatch(t, []string{hafalan.FieldCurrentChapter, hafalan.FieldVersesSubmitted}, invalid.Failed)
}

func TestRecords_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	for _, day := range []int{19, 5, 12} {
		_, err := store.Records().Save(ctx, hafalan.DailyRecord{StudentName: "Citra", Date: timeutil.Date(2025, 5, day)})
		require.NoError(t, err)
	}
	docs, err := store.Records().All(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "2025-05-19", docs[0].String(hafalan.FieldDateStr))
	assert.Equal(t, "2025-05-12", docs[2].String(hafalan.FieldDateStr))
}

func TestSummaries_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	repo := store.Summaries()

	s := hafalan.MonthlySummary{StudentName: "Dewi", Month: "Mei", Year: "2025", AttendanceCount: 10}
	require.NoError(t, repo.Upsert(ctx, s))
	s.AttendanceCount = 12
	require.NoError(t, repo.Upsert(ctx, s))

	list, err := repo.FindByPeriod(ctx, hafalan.PeriodKey{Month: "Mei", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 12, list[0].AttendanceCount)

	n, err := repo.CountByStudent(ctx, "Dewi")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Delete(ctx, s.Key()))
	assert.True(t, shared.IsNotFound(repo.Delete(ctx, s.Key())))
}

func TestStudents_CRUD(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	repo := store.Students()

	require.NoError(t, repo.Save(ctx, hafalan.Santri{Name: "Umar", Gender: hafalan.GenderMale}))
	require.NoError(t, repo.Save(ctx, hafalan.Santri{Name: "Fatimah", Gender: hafalan.GenderFemale}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Fatimah", list[0].Name)

	got, err := repo.Get(ctx, "Umar")
	require.NoError(t, err)
	assert.Equal(t, hafalan.GenderMale, got.Gender)

	_, err = repo.Get(ctx, "Ghost")
	assert.True(t, shared.IsNotFound(err))

	require.NoError(t, repo.Delete(ctx, "Umar"))
	assert.True(t, shared.IsNotFound(repo.Delete(ctx, "Umar")))
	require.NoError(t, store.Ping(ctx))
}
