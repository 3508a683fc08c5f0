package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankClusters_OrderPreserving(t *testing.T) {
	labels := []int{0, 1, 2, 3, 0, 1, 2, 3}
	ranking := []float64{10, 50, 30, 70, 12, 52, 28, 68}

	ranks := RankClusters(4, labels, ranking)
	require.Len(t, ranks, 4)

	for i := 1; i < len(ranks); i++ {
		assert.Greater(t, ranks[i-1].Mean, ranks[i].Mean)
		assert.Less(t, ranks[i-1].Rank, ranks[i].Rank)
	}
	assert.Equal(t, 3, ranks[0].ClusterID)
	assert.Equal(t, LabelTop, ranks[0].Label)
	assert.Equal(t, LabelMid, ranks[1].Label)
	assert.Equal(t, LabelNeedsSupport, ranks[2].Label)
	assert.Equal(t, "Cluster 4", ranks[3].Label)
	assert.Equal(t, 0, ranks[3].ClusterID)
}

func TestRankClusters_TiesBreakByClusterID(t *testing.T) {
	ranks := RankClusters(3, []int{2, 1, 0}, []float64{5, 5, 5})
	assert.Equal(t, 0, ranks[0].ClusterID)
	assert.Equal(t, 1, ranks[1].ClusterID)
	assert.Equal(t, 2, ranks[2].ClusterID)
}

func TestRankClusters_EmptyClustersLast(t *testing.T) {
	ranks := RankClusters(3, []int{1, 1}, []float64{-3, -5})
	assert.Equal(t, 1, ranks[0].ClusterID)
	assert.Equal(t, 2, ranks[0].Size)
	assert.Equal(t, 0, ranks[1].Size)
	assert.Equal(t, 0, ranks[2].Size)
}

func TestLabelForRank(t *testing.T) {
	assert.Equal(t, "Top tier", LabelForRank(0))
	assert.Equal(t, "Mid tier", LabelForRank(1))
	assert.Equal(t, "Needs support", LabelForRank(2))
	assert.Equal(t, "Cluster 4", LabelForRank(3))
	assert.Equal(t, "Cluster 8", LabelForRank(7))
}

func TestSilhouette(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}, {11}}
	s, ok := Silhouette(points, []int{0, 0, 1, 1})
	require.True(t, ok)
	// a=1, b≈9.5 or 10.5 -> every point close to 0.9
	assert.InDelta(t, 0.9, s, 0.02)

	_, ok = Silhouette(points, []int{0, 0, 0, 0})
	assert.False(t, ok)
	_, ok = Silhouette(points, []int{0, 1, 2, 3})
	assert.False(t, ok)

	// singleton cluster contributes zero
	s, ok = Silhouette([][]float64{{0}, {1}, {10}}, []int{0, 0, 1})
	require.True(t, ok)
	assert.InDelta(t, (2*(1-1.0/9.5))/3, s, 0.05)
}

func TestKMeans_SeparatesObviousGroups(t *testing.T) {
	points := [][]float64{{0, 0}, {0.1, 0}, {0, 0.1}, {5, 5}, {5.1, 5}, {5, 5.1}}
	fit := NewKMeans(DefaultSeed).Cluster(points, 2, 5)
	assert.Equal(t, fit.Labels[0], fit.Labels[1])
	assert.Equal(t, fit.Labels[0], fit.Labels[2])
	assert.Equal(t, fit.Labels[3], fit.Labels[4])
	assert.NotEqual(t, fit.Labels[0], fit.Labels[3])
	assert.Less(t, fit.Inertia, 0.1)
}
