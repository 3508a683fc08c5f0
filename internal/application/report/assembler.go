// Package report собирает итоговый отчёт кластеризации: строки с подписями
// уровней, счётчики по уровням, данные для круговой и точечной диаграмм.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT DTOs
// ══════════════════════════════════════════════════════════════════════════════

// Row - строка итоговой таблицы: признаки сантри и его уровень.
type Row struct {
	StudentName       string        `json:"student_name"`
	RecordCount       int           `json:"record_count"`
	WeightedMemorized float64       `json:"weighted_memorized"`
	WeightedSubmitted float64       `json:"weighted_submitted"`
	FluencyRecitation hafalan.Score `json:"fluency_recitation"`
	FluencyReview     hafalan.Score `json:"fluency_review"`
	FluencyTadarus    hafalan.Score `json:"fluency_tadarus"`
	FluencyTotal      hafalan.Score `json:"fluency_total"`
	AttendanceRate    float64       `json:"attendance_rate"`
	ClusterID         int           `json:"cluster_id"`
	Rank              int           `json:"rank"`
	Label             string        `json:"label"`
}

// TierCount - число сантри в уровне.
type TierCount struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PieSlice - сектор круговой диаграммы.
type PieSlice struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// ScatterPoint - точка диаграммы рассеяния.
type ScatterPoint struct {
	StudentName string  `json:"student_name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Label       string  `json:"label"`
}

// Scatter - оси и точки диаграммы рассеяния.
type Scatter struct {
	XAxis  clustering.Feature `json:"x_axis"`
	YAxis  clustering.Feature `json:"y_axis"`
	Points []ScatterPoint     `json:"points"`
}

// ClusterSummary - средние признаков и центроид кластера.
type ClusterSummary struct {
	ClusterID int                            `json:"cluster_id"`
	Rank      int                            `json:"rank"`
	Label     string                         `json:"label"`
	Size      int                            `json:"size"`
	Means     map[clustering.Feature]float64 `json:"means"`
	Centroid  []float64                      `json:"centroid"`
}

// Report - готовый отчёт для HTTP и CLI.
type Report struct {
	Selector    hafalan.PeriodSelector  `json:"selector"`
	K           int                     `json:"k"`
	FeatureSet  clustering.FeatureSet   `json:"feature_set"`
	Features    []clustering.Feature    `json:"features"`
	Screening   hafalan.Screening       `json:"screening"`
	Students    int                     `json:"students"`
	Rows        []Row                   `json:"rows"`
	TierCounts  []TierCount             `json:"tier_counts"`
	Pie         []PieSlice              `json:"pie"`
	Scatter     Scatter                 `json:"scatter"`
	Clusters    []ClusterSummary        `json:"clusters"`
	Inertia     float64                 `json:"inertia"`
	Silhouette  *float64                `json:"silhouette,omitempty"`
	Elbow       []clustering.ElbowPoint `json:"elbow,omitempty"`
	Diagnostic  *clustering.Diagnostic  `json:"diagnostic,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSEMBLER
// ══════════════════════════════════════════════════════════════════════════════

// Input - всё, что нужно сборщику помимо результата кластеризации.
type Input struct {
	Selector   hafalan.PeriodSelector
	FeatureSet clustering.FeatureSet
	Screening  hafalan.Screening
	Now        time.Time
}

// Assemble соединяет назначения кластеров со строками признаков по имени.
// Расхождение множеств сантри - ошибка программы, а не данных.
func Assemble(in Input, res *clustering.Result) (*Report, error) {
	if res == nil {
		return nil, fmt.Errorf("report: nil clustering result")
	}
	if len(res.Assignments) != len(res.Rows) {
		return nil, fmt.Errorf("report: %d assignments for %d students", len(res.Assignments), len(res.Rows))
	}

	byName := make(map[string]clustering.StudentFeatureRow, len(res.Rows))
	for _, r := range res.Rows {
		byName[r.StudentName] = r
	}

	rows := make([]Row, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		f, ok := byName[a.StudentName]
		if !ok {
			return nil, fmt.Errorf("report: assignment for unknown student %q", a.StudentName)
		}
		rows = append(rows, Row{
			StudentName:       f.StudentName,
			RecordCount:       f.RecordCount,
			WeightedMemorized: f.WeightedMemorized,
			WeightedSubmitted: f.WeightedSubmitted,
			FluencyRecitation: f.FluencyRecitation,
			FluencyReview:     f.FluencyReview,
			FluencyTadarus:    f.FluencyTadarus,
			FluencyTotal:      f.FluencyTotal,
			AttendanceRate:    f.AttendanceRate,
			ClusterID:         a.ClusterID,
			Rank:              a.Rank,
			Label:             a.Label,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Rank != rows[j].Rank {
			return rows[i].Rank < rows[j].Rank
		}
		return rows[i].StudentName < rows[j].StudentName
	})

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rep := &Report{
		Selector:    in.Selector,
		K:           len(res.Ranks),
		FeatureSet:  in.FeatureSet,
		Features:    res.Features,
		Screening:   in.Screening,
		Students:    len(rows),
		Rows:        rows,
		Inertia:     res.Fit.Inertia,
		Silhouette:  res.Silhouette,
		Elbow:       res.Elbow,
		Diagnostic:  res.Diagnostic,
		GeneratedAt: now,
	}
	rep.TierCounts, rep.Pie = tierCounts(res.Ranks, rows)
	rep.Scatter = scatter(in.FeatureSet, rows)
	rep.Clusters = clusterSummaries(res)
	return rep, nil
}

func tierCounts(ranks []clustering.ClusterRank, rows []Row) ([]TierCount, []PieSlice) {
	counts := make(map[int]int, len(ranks))
	for _, r := range rows {
		counts[r.Rank]++
	}

	tiers := make([]TierCount, 0, len(ranks))
	pie := make([]PieSlice, 0, len(ranks))
	for _, r := range ranks {
		n := counts[r.Rank]
		tiers = append(tiers, TierCount{Rank: r.Rank, Label: r.Label, Count: n})
		if n == 0 {
			continue
		}
		pie = append(pie, PieSlice{
			Label: r.Label,
			Count: n,
			Share: float64(n) / float64(len(rows)),
		})
	}
	return tiers, pie
}

// scatter: X - взвешенный хафалан, Y - взвешенный сетор
// (для компактного набора - средняя kelancaran).
func scatter(set clustering.FeatureSet, rows []Row) Scatter {
	s := Scatter{
		XAxis:  clustering.FeatureWeightedMemorized,
		YAxis:  clustering.FeatureWeightedSubmitted,
		Points: make([]ScatterPoint, 0, len(rows)),
	}
	var fill float64
	if set == clustering.FeatureSetCompact {
		s.YAxis = clustering.FeatureFluencyTotal
		fill = fluencyMean(rows)
	}
	for _, r := range rows {
		y := r.WeightedSubmitted
		if s.YAxis == clustering.FeatureFluencyTotal {
			y = fill
			if r.FluencyTotal.Valid {
				y = r.FluencyTotal.Value
			}
		}
		s.Points = append(s.Points, ScatterPoint{
			StudentName: r.StudentName,
			X:           r.WeightedMemorized,
			Y:           y,
			Label:       r.Label,
		})
	}
	return s
}

// fluencyMean - среднее известных kelancaran_total; им заполняются пропуски,
// как в матрице признаков.
func fluencyMean(rows []Row) float64 {
	var sum float64
	var n int
	for _, r := range rows {
		if r.FluencyTotal.Valid {
			sum += r.FluencyTotal.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clusterSummaries(res *clustering.Result) []ClusterSummary {
	raw := clustering.Matrix(res.Rows, res.Features)
	out := make([]ClusterSummary, 0, len(res.Ranks))
	for _, r := range res.Ranks {
		sum := make([]float64, len(res.Features))
		size := 0
		for i, label := range res.Fit.Labels {
			if label != r.ClusterID {
				continue
			}
			size++
			for j := range sum {
				sum[j] += raw[i][j]
			}
		}
		means := make(map[clustering.Feature]float64, len(res.Features))
		if size > 0 {
			for j, f := range res.Features {
				means[f] = sum[j] / float64(size)
			}
		}
		var centroid []float64
		if r.ClusterID < len(res.Fit.Centroids) {
			centroid = res.Fit.Centroids[r.ClusterID]
		}
		out = append(out, ClusterSummary{
			ClusterID: r.ClusterID,
			Rank:      r.Rank,
			Label:     r.Label,
			Size:      size,
			Means:     means,
			Centroid:  centroid,
		})
	}
	return out
}
