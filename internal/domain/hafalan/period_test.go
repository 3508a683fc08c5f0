package hafalan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

func TestNewPeriodKey(t *testing.T) {
	p, err := NewPeriodKey("mei", "2025")
	require.NoError(t, err)
	assert.Equal(t, PeriodKey{Month: "Mei", Year: "2025"}, p)
	assert.Equal(t, "Mei/2025", p.String())

	_, err = NewPeriodKey("May", "2025")
	assert.Error(t, err)
	_, err = NewPeriodKey("Mei", "25x")
	assert.Error(t, err)
}

func TestPeriodSelector_Matches(t *testing.T) {
	period := PeriodKey{Month: "Mei", Year: "2025"}
	rec := NormalizedRecord{Date: timeutil.Date(2025, 5, 9), DateStr: "2025-05-09"}

	assert.True(t, PeriodSelector{Period: period}.Matches(rec))
	assert.True(t, PeriodSelector{Period: period, Granularity: GranularityWeekly, Week: 2}.Matches(rec))
	assert.False(t, PeriodSelector{Period: period, Granularity: GranularityWeekly, Week: 1}.Matches(rec))
	assert.True(t, PeriodSelector{Period: period, Granularity: GranularityDaily, Date: "2025-05-09"}.Matches(rec))
	assert.False(t, PeriodSelector{Period: period, Granularity: GranularityDaily, Date: "2025-05-10"}.Matches(rec))
}

func TestPeriodSelector_Validate(t *testing.T) {
	period := PeriodKey{Month: "Mei", Year: "2025"}
	assert.NoError(t, PeriodSelector{Period: period}.Validate())
	assert.Error(t, PeriodSelector{}.Validate())
	assert.Error(t, PeriodSelector{Period: period, Granularity: GranularityWeekly, Week: 6}.Validate())
	assert.Error(t, PeriodSelector{Period: period, Granularity: GranularityDaily, Date: "2025-06-01"}.Validate())
	assert.NoError(t, PeriodSelector{Period: period, Granularity: GranularityDaily, Date: "2025-05-31"}.Validate())
}

func TestSummaryKey_LastWriteWinsKey(t *testing.T) {
	s := MonthlySummary{StudentName: "Ahmad", Month: "Mei", Year: "2025", ChaptersCompleted: []int{30, 30, 29}}
	assert.Equal(t, "Ahmad_Mei_2025", s.Key())

	s.FluencyRecitation, s.FluencyReview, s.FluencyTadarus = 80, 90, 71
	s.Finalize()
	assert.Equal(t, []int{29, 30}, s.ChaptersCompleted)
	assert.InDelta(t, 564+862, s.WeightedMemorized, 1e-9)
	assert.Equal(t, 80.33, s.FluencyTotal)
}

func TestIsSetoranDay(t *testing.T) {
	assert.True(t, IsSetoranDay(timeutil.Date(2025, 5, 5)))  // Senin
	assert.False(t, IsSetoranDay(timeutil.Date(2025, 5, 6))) // Selasa
	assert.True(t, IsSetoranDay(timeutil.Date(2025, 5, 7)))  // Rabu
	assert.True(t, IsSetoranDay(timeutil.Date(2025, 5, 9)))  // Jumat
	assert.False(t, IsSetoranDay(timeutil.Date(2025, 5, 11)))
}
