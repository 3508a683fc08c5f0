package clustering

import (
	"sort"
	"strconv"
)

// Tier labels по рангу кластера.
const (
	LabelTop          = "Top tier"
	LabelMid          = "Mid tier"
	LabelNeedsSupport = "Needs support"
)

// LabelForRank возвращает подпись уровня для ранга (0 - лучший).
// Ранги начиная с 3 получают "Cluster N", где N = rank+1.
func LabelForRank(rank int) string {
	switch rank {
	case 0:
		return LabelTop
	case 1:
		return LabelMid
	case 2:
		return LabelNeedsSupport
	default:
		return "Cluster " + strconv.Itoa(rank+1)
	}
}

// ClusterRank - позиция кластера в рейтинге.
type ClusterRank struct {
	ClusterID int     `json:"cluster_id"`
	Rank      int     `json:"rank"`
	Label     string  `json:"label"`
	Size      int     `json:"size"`
	Mean      float64 `json:"mean"`
}

// RankClusters упорядочивает k кластеров по убыванию среднего значения
// ranking (значения исходного, не стандартизованного признака).
// Равные средние упорядочиваются по возрастанию id кластера.
// Пустые кластеры идут последними.
func RankClusters(k int, labels []int, ranking []float64) []ClusterRank {
	ranks := make([]ClusterRank, k)
	sums := make([]float64, k)
	for c := range ranks {
		ranks[c].ClusterID = c
	}
	for i, l := range labels {
		ranks[l].Size++
		sums[l] += ranking[i]
	}
	for c := range ranks {
		if ranks[c].Size > 0 {
			ranks[c].Mean = sums[c] / float64(ranks[c].Size)
		}
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if (a.Size == 0) != (b.Size == 0) {
			return a.Size > 0
		}
		if a.Mean != b.Mean {
			return a.Mean > b.Mean
		}
		return a.ClusterID < b.ClusterID
	})
	for r := range ranks {
		ranks[r].Rank = r
		ranks[r].Label = LabelForRank(r)
	}
	return ranks
}

// RankByCluster индексирует результат RankClusters по id кластера.
func RankByCluster(ranks []ClusterRank) map[int]ClusterRank {
	out := make(map[int]ClusterRank, len(ranks))
	for _, r := range ranks {
		out[r.ClusterID] = r
	}
	return out
}
