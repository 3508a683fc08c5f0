package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
)

func sampleResult(t *testing.T) *clustering.Result {
	t.Helper()
	var rows []clustering.StudentFeatureRow
	for i, name := range []string{"Ahmad", "Bilal", "Citra", "Dewi", "Fatimah", "Umar"} {
		group := float64(i % 3)
		rows = append(rows, clustering.StudentFeatureRow{
			StudentName:       name,
			RecordCount:       4,
			WeightedMemorized: 100*group + float64(i),
			WeightedSubmitted: 10 * group,
			FluencyTotal:      hafalan.ScoreOf(5 + group),
			AttendanceRate:    0.3 * group,
		})
	}
	res, err := clustering.NewEngine(clustering.DefaultSeed).Run(rows, clustering.Params{K: 3})
	require.NoError(t, err)
	return res
}

func TestAssemble_JoinAndCounts(t *testing.T) {
	res := sampleResult(t)
	now := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	rep, err := Assemble(Input{
		Selector:   hafalan.PeriodSelector{Period: hafalan.PeriodKey{Month: "Mei", Year: "2025"}},
		FeatureSet: clustering.FeatureSetFull,
		Screening:  hafalan.Screening{Before: 26, After: 24},
		Now:        now,
	}, res)
	require.NoError(t, err)

	assert.Equal(t, 6, rep.Students)
	assert.Equal(t, 3, rep.K)
	assert.Equal(t, now, rep.GeneratedAt)
	require.Len(t, rep.Rows, 6)

	// rows come ordered by rank, Top tier first
	assert.Equal(t, clustering.LabelTop, rep.Rows[0].Label)
	assert.Equal(t, "Citra", rep.Rows[0].StudentName)
	assert.Equal(t, clustering.LabelNeedsSupport, rep.Rows[5].Label)

	total := 0
	for _, tc := range rep.TierCounts {
		total += tc.Count
	}
	assert.Equal(t, 6, total)

	var share float64
	for _, s := range rep.Pie {
		share += s.Share
	}
	assert.InDelta(t, 1.0, share, 1e-9)

	assert.Equal(t, clustering.FeatureWeightedMemorized, rep.Scatter.XAxis)
	assert.Equal(t, clustering.FeatureWeightedSubmitted, rep.Scatter.YAxis)
	assert.Len(t, rep.Scatter.Points, 6)

	require.Len(t, rep.Clusters, 3)
	assert.Equal(t, 0, rep.Clusters[0].Rank)
	assert.Greater(t, rep.Clusters[0].Means[clustering.FeatureWeightedMemorized], rep.Clusters[1].Means[clustering.FeatureWeightedMemorized])
}

func TestAssemble_UnknownStudentIsDefect(t *testing.T) {
	res := sampleResult(t)
	res.Assignments[0].StudentName = "Ghost"
	_, err := Assemble(Input{}, res)
	assert.Error(t, err)

	res = sampleResult(t)
	res.Assignments = res.Assignments[1:]
	_, err = Assemble(Input{}, res)
	assert.Error(t, err)
}

func TestAssemble_CompactScatterUsesFluency(t *testing.T) {
	rep, err := Assemble(Input{FeatureSet: clustering.FeatureSetCompact}, sampleResult(t))
	require.NoError(t, err)
	assert.Equal(t, clustering.FeatureFluencyTotal, rep.Scatter.YAxis)
	for _, p := range rep.Scatter.Points {
		assert.GreaterOrEqual(t, p.Y, 5.0)
	}
}

func TestScatter_CompactImputesMissingFluency(t *testing.T) {
	rows := []Row{
		{StudentName: "Ahmad", WeightedMemorized: 30, FluencyTotal: hafalan.ScoreOf(8)},
		{StudentName: "Bilal", WeightedMemorized: 20, FluencyTotal: hafalan.ScoreOf(6)},
		{StudentName: "Umar", WeightedMemorized: 10},
	}
	s := scatter(clustering.FeatureSetCompact, rows)
	require.Len(t, s.Points, 3)
	assert.Equal(t, 8.0, s.Points[0].Y)
	assert.InDelta(t, 7.0, s.Points[2].Y, 1e-9)

	full := scatter(clustering.FeatureSetFull, rows)
	assert.Equal(t, clustering.FeatureWeightedSubmitted, full.YAxis)
	assert.Equal(t, 0.0, full.Points[2].Y)
}

func TestReport_JSONRoundTrip(t *testing.T) {
	rep, err := Assemble(Input{}, sampleResult(t))
	require.NoError(t, err)
	rep.Rows[0].FluencyReview = hafalan.Score{}

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	var back Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rep.Rows[0].StudentName, back.Rows[0].StudentName)
	assert.False(t, back.Rows[0].FluencyReview.Valid)
	assert.Equal(t, rep.Rows[0].FluencyTotal, back.Rows[0].FluencyTotal)
}
