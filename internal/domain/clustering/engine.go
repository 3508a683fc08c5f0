package clustering

import (
	"fmt"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLUSTER ENGINE
// ══════════════════════════════════════════════════════════════════════════════

const (
	MinK = 2
	MaxK = 8

	// DefaultWinsorizeLimit - симметричный предел диагностического пути.
	DefaultWinsorizeLimit = 0.15
	// DiagnosticComponents - число главных компонент диагностики.
	DiagnosticComponents = 2
)

// Params - параметры одного запуска.
type Params struct {
	K              int
	NInit          int
	FeatureSet     FeatureSet
	RankBy         Feature
	Diagnostic     bool
	WinsorizeLimit float64
	Elbow          bool
}

// ValidateK проверяет диапазон 2..8.
func ValidateK(k int) error {
	if k < MinK || k > MaxK {
		return shared.WrapError("clustering", "ValidateK", shared.ErrDegenerateCluster,
			"cluster count must be between 2 and 8", fmt.Errorf("k=%d", k))
	}
	return nil
}

// Assignment - кластер и подпись уровня сантри.
type Assignment struct {
	StudentName string `json:"student_name"`
	ClusterID   int    `json:"cluster_id"`
	Rank        int    `json:"rank"`
	Label       string `json:"label"`
}

// ElbowPoint - строка таблицы elbow.
type ElbowPoint struct {
	K          int      `json:"k"`
	SSE        float64  `json:"sse"`
	Silhouette *float64 `json:"silhouette,omitempty"`
}

// Diagnostic - результат диагностического пути: winsorize, стандартизация,
// PCA и K-Means. Только отчётность, на основные подписи не влияет.
type Diagnostic struct {
	WinsorizeLimit         float64      `json:"winsorize_limit"`
	ExplainedVarianceRatio []float64    `json:"explained_variance_ratio"`
	Projected              [][]float64  `json:"projected"`
	Assignments            []Assignment `json:"assignments"`
	Silhouette             *float64     `json:"silhouette,omitempty"`
}

// Result - все промежуточные результаты запуска.
type Result struct {
	Features    []Feature           `json:"features"`
	Rows        []StudentFeatureRow `json:"rows"`
	Scaled      [][]float64         `json:"scaled"`
	Fit         Fit                 `json:"fit"`
	Ranks       []ClusterRank       `json:"ranks"`
	Assignments []Assignment        `json:"assignments"`
	Silhouette  *float64            `json:"silhouette,omitempty"`
	Elbow       []ElbowPoint        `json:"elbow,omitempty"`
	Diagnostic  *Diagnostic         `json:"diagnostic,omitempty"`
}

// Engine выполняет стандартизацию, K-Means и ранжирование.
type Engine struct {
	clusterer Clusterer
	nInit     int
}

// EngineOption настраивает Engine.
type EngineOption func(*Engine)

// WithClusterer подменяет алгоритм кластеризации.
func WithClusterer(c Clusterer) EngineOption {
	return func(e *Engine) { e.clusterer = c }
}

// WithNInit задаёт число перезапусков по умолчанию.
func WithNInit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.nInit = n
		}
	}
}

// NewEngine создаёт движок с K-Means (seed) по умолчанию.
func NewEngine(seed uint64, opts ...EngineOption) *Engine {
	e := &Engine{clusterer: NewKMeans(seed), nInit: DefaultNInit}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run кластеризует строки сантри. Проверки K и числа сантри выполняются
// до первого вызова K-Means.
func (e *Engine) Run(rows []StudentFeatureRow, params Params) (*Result, error) {
	if err := ValidateK(params.K); err != nil {
		return nil, err
	}
	if err := RequireStudents(rows, params.K); err != nil {
		return nil, err
	}
	if params.FeatureSet == "" {
		params.FeatureSet = FeatureSetFull
	}
	if params.RankBy == "" {
		params.RankBy = FeatureWeightedMemorized
	}
	nInit := params.NInit
	if nInit <= 0 {
		nInit = e.nInit
	}

	features := params.FeatureSet.Features()
	raw := Matrix(rows, features)
	scaled := Standardize(raw)
	ranking := rankingColumn(rows, params.RankBy)

	fit := e.clusterer.Cluster(scaled, params.K, nInit)
	ranks := RankClusters(params.K, fit.Labels, ranking)

	res := &Result{
		Features:    features,
		Rows:        rows,
		Scaled:      scaled,
		Fit:         fit,
		Ranks:       ranks,
		Assignments: assignments(rows, fit.Labels, ranks),
	}
	if s, ok := Silhouette(scaled, fit.Labels); ok {
		res.Silhouette = &s
	}

	if params.Elbow {
		res.Elbow = e.elbow(scaled)
	}
	if params.Diagnostic {
		diag, err := e.diagnostic(rows, raw, ranking, params, nInit)
		if err != nil {
			return nil, err
		}
		res.Diagnostic = diag
	}
	return res, nil
}

// elbow считает SSE и силуэт для K = 2..min(8, N-1).
func (e *Engine) elbow(scaled [][]float64) []ElbowPoint {
	maxK := MaxK
	if n := len(scaled) - 1; n < maxK {
		maxK = n
	}
	var out []ElbowPoint
	for k := MinK; k <= maxK; k++ {
		fit := e.clusterer.Cluster(scaled, k, ElbowNInit)
		pt := ElbowPoint{K: k, SSE: fit.Inertia}
		if s, ok := Silhouette(scaled, fit.Labels); ok {
			pt.Silhouette = &s
		}
		out = append(out, pt)
	}
	return out
}

func (e *Engine) diagnostic(rows []StudentFeatureRow, raw [][]float64, ranking []float64, params Params, nInit int) (*Diagnostic, error) {
	limit := params.WinsorizeLimit
	if limit <= 0 {
		limit = DefaultWinsorizeLimit
	}
	scaled := Standardize(Winsorize(raw, limit))
	pca, err := PCA(scaled, DiagnosticComponents)
	if err != nil {
		return nil, err
	}
	fit := e.clusterer.Cluster(pca.Projected, params.K, nInit)
	ranks := RankClusters(params.K, fit.Labels, ranking)

	diag := &Diagnostic{
		WinsorizeLimit:         limit,
		ExplainedVarianceRatio: pca.ExplainedVarianceRatio,
		Projected:              pca.Projected,
		Assignments:            assignments(rows, fit.Labels, ranks),
	}
	if s, ok := Silhouette(pca.Projected, fit.Labels); ok {
		diag.Silhouette = &s
	}
	return diag, nil
}

func rankingColumn(rows []StudentFeatureRow, f Feature) []float64 {
	return column(Matrix(rows, []Feature{f}), 0)
}

func assignments(rows []StudentFeatureRow, labels []int, ranks []ClusterRank) []Assignment {
	byCluster := RankByCluster(ranks)
	out := make([]Assignment, len(rows))
	for i, row := range rows {
		r := byCluster[labels[i]]
		out[i] = Assignment{
			StudentName: row.StudentName,
			ClusterID:   labels[i],
			Rank:        r.Rank,
			Label:       r.Label,
		}
	}
	return out
}
