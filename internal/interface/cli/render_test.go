package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
)

func TestRenderReport(t *testing.T) {
	s := 0.61
	rep := &report.Report{
		Selector:   hafalan.PeriodSelector{Period: hafalan.PeriodKey{Month: "Mei", Year: "2025"}, Granularity: hafalan.GranularityMonthly},
		K:          2,
		FeatureSet: clustering.FeatureSetFull,
		Students:   2,
		Screening:  hafalan.Screening{Before: 3, After: 2, Dropped: []hafalan.InvalidRecord{{ID: "x", Failed: []string{"bulan"}}}},
		Rows: []report.Row{
			{StudentName: "Ahmad", RecordCount: 4, WeightedMemorized: 12.5, FluencyTotal: hafalan.ScoreOf(8.25), AttendanceRate: 1, Label: clustering.LabelTop},
			{StudentName: "Bilal", RecordCount: 3, FluencyTotal: hafalan.Score{}, AttendanceRate: 0.5, Label: clustering.LabelMid},
		},
		TierCounts: []report.TierCount{{Rank: 0, Label: clustering.LabelTop, Count: 1}, {Rank: 1, Label: clustering.LabelMid, Count: 1}},
		Silhouette: &s,
	}

	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, rep))
	out := buf.String()

	assert.Contains(t, out, "Mei/2025")
	assert.Contains(t, out, "silhouette=0.610")
	assert.Contains(t, out, "1 baris dibuang")
	assert.Contains(t, out, "Ahmad")
	assert.Contains(t, out, "8.25")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, clustering.LabelTop)
}

func TestRenderStudents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderStudents(&buf, []hafalan.Santri{{Name: "Aisyah", Gender: hafalan.GenderFemale}}))
	assert.Contains(t, buf.String(), "Aisyah")
	assert.Contains(t, buf.String(), "P")
}

func TestTierStyleFallback(t *testing.T) {
	assert.NotEqual(t, TierStyle(clustering.LabelTop).GetForeground(), TierStyle("Cluster 5").GetForeground())
}
