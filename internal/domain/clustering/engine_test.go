package clustering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

type countingClusterer struct {
	inner Clusterer
	calls int
}

func (c *countingClusterer) Cluster(points [][]float64, k int, nInit int) Fit {
	c.calls++
	return c.inner.Cluster(points, k, nInit)
}

func threeStudents() []StudentFeatureRow {
	var rows []StudentFeatureRow
	for i := 1; i <= 3; i++ {
		f := float64(i)
		rows = append(rows, StudentFeatureRow{
			StudentName:       []string{"s1", "s2", "s3"}[i-1],
			RecordCount:       4,
			WeightedMemorized: 100 * f,
			WeightedSubmitted: 10 * f,
			FluencyRecitation: hafalan.ScoreOf(2 + 2*f),
			FluencyReview:     hafalan.ScoreOf(1 + 2*f),
			FluencyTadarus:    hafalan.ScoreOf(3 + 2*f),
			FluencyTotal:      hafalan.ScoreOf(2 + 2*f),
			AttendanceRate:    0.25 + 0.25*f,
		})
	}
	return rows
}

func TestEngine_ThreeSingletonClusters(t *testing.T) {
	res, err := NewEngine(DefaultSeed).Run(threeStudents(), Params{K: 3})
	require.NoError(t, err)

	clusters := map[int]bool{}
	for _, a := range res.Assignments {
		clusters[a.ClusterID] = true
	}
	assert.Len(t, clusters, 3)
	assert.InDelta(t, 0, res.Fit.Inertia, 1e-9)

	labels := map[string]string{}
	for _, a := range res.Assignments {
		labels[a.StudentName] = a.Label
	}
	assert.Equal(t, LabelTop, labels["s3"])
	assert.Equal(t, LabelMid, labels["s2"])
	assert.Equal(t, LabelNeedsSupport, labels["s1"])
	// silhouette is undefined when every point is its own cluster
	assert.Nil(t, res.Silhouette)
}

func TestEngine_RejectsBadK(t *testing.T) {
	counter := &countingClusterer{inner: NewKMeans(DefaultSeed)}
	engine := NewEngine(DefaultSeed, WithClusterer(counter))

	for _, k := range []int{1, 0, 9} {
		_, err := engine.Run(threeStudents(), Params{K: k})
		assert.True(t, errors.Is(err, shared.ErrDegenerateCluster), "k=%d", k)
	}
	_, err := engine.Run(threeStudents()[:2], Params{K: 3})
	assert.True(t, errors.Is(err, shared.ErrInsufficientData))
	assert.Equal(t, 0, counter.calls)
}

func TestEngine_IdenticalRowsDegradeWithoutError(t *testing.T) {
	rows := []StudentFeatureRow{
		{StudentName: "a", WeightedMemorized: 5, AttendanceRate: 1},
		{StudentName: "b", WeightedMemorized: 5, AttendanceRate: 1},
		{StudentName: "c", WeightedMemorized: 5, AttendanceRate: 1},
		{StudentName: "d", WeightedMemorized: 5, AttendanceRate: 1},
	}
	res, err := NewEngine(DefaultSeed).Run(rows, Params{K: 2})
	require.NoError(t, err)
	for _, a := range res.Assignments {
		assert.Equal(t, res.Assignments[0].ClusterID, a.ClusterID)
	}
	assert.Equal(t, 0.0, res.Fit.Inertia)
	assert.Nil(t, res.Silhouette)
}

func TestEngine_ElbowAndDiagnostic(t *testing.T) {
	var rows []StudentFeatureRow
	for i := 0; i < 12; i++ {
		f := float64(i % 3)
		rows = append(rows, StudentFeatureRow{
			StudentName:       string(rune('a' + i)),
			WeightedMemorized: 100*f + float64(i),
			WeightedSubmitted: 10 * f,
			FluencyTotal:      hafalan.ScoreOf(3 * f),
			AttendanceRate:    f / 2,
		})
	}
	counter := &countingClusterer{inner: NewKMeans(DefaultSeed)}
	res, err := NewEngine(DefaultSeed, WithClusterer(counter)).Run(rows, Params{
		K:          3,
		FeatureSet: FeatureSetCompact,
		Elbow:      true,
		Diagnostic: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []Feature{FeatureWeightedMemorized, FeatureFluencyTotal, FeatureAttendanceRate}, res.Features)
	require.Len(t, res.Elbow, 7) // K = 2..8
	assert.Equal(t, 2, res.Elbow[0].K)
	assert.Equal(t, 8, res.Elbow[6].K)
	assert.GreaterOrEqual(t, res.Elbow[0].SSE, res.Elbow[1].SSE)

	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, DefaultWinsorizeLimit, res.Diagnostic.WinsorizeLimit)
	assert.Len(t, res.Diagnostic.ExplainedVarianceRatio, 2)
	require.NotNil(t, res.Diagnostic.Silhouette)
	assert.Len(t, res.Diagnostic.Assignments, len(rows))

	require.NotNil(t, res.Silhouette)
	assert.Greater(t, *res.Silhouette, 0.5)
	// main run + 7 elbow runs + diagnostic run
	assert.Equal(t, 9, counter.calls)
}

func TestEngine_Deterministic(t *testing.T) {
	rows := threeStudents()
	rows = append(rows, StudentFeatureRow{StudentName: "s4", WeightedMemorized: 150, AttendanceRate: 0.6})
	a, err := NewEngine(DefaultSeed).Run(rows, Params{K: 2})
	require.NoError(t, err)
	b, err := NewEngine(DefaultSeed).Run(rows, Params{K: 2})
	require.NoError(t, err)
	assert.Equal(t, a.Assignments, b.Assignments)
	assert.Equal(t, a.Fit.Inertia, b.Fit.Inertia)
}
