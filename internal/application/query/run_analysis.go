package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN ANALYSIS QUERY
// Строит отчёт уровней: загрузка периода одним запросом, нормализация,
// агрегирование по сантри, K-Means, сборка отчёта.
// ══════════════════════════════════════════════════════════════════════════════

// MinScreenedRows - минимальное число строк после отсева.
const MinScreenedRows = 2

// RunAnalysisQuery содержит параметры отчёта.
type RunAnalysisQuery struct {
	// Month и Year - период ("Mei", "2025").
	Month string
	Year  string

	// Granularity - monthly (по умолчанию), weekly или daily.
	Granularity string

	// Week - номер недели 1..5 для weekly.
	Week int

	// Date - дата YYYY-MM-DD для daily.
	Date string

	// K - число кластеров (2..8).
	K int

	// FeatureSet - full или compact.
	FeatureSet string

	Diagnostic     bool
	Elbow          bool
	WinsorizeLimit float64

	// SkipCache - пересчитать отчёт, даже если он есть в кэше.
	SkipCache bool
}

// Validate проверяет параметры и собирает селектор.
func (q *RunAnalysisQuery) Validate() (hafalan.PeriodSelector, clustering.FeatureSet, error) {
	period, err := hafalan.NewPeriodKey(q.Month, q.Year)
	if err != nil {
		return hafalan.PeriodSelector{}, "", err
	}
	gran, err := hafalan.ParseGranularity(q.Granularity)
	if err != nil {
		return hafalan.PeriodSelector{}, "", err
	}
	sel := hafalan.PeriodSelector{Period: period, Granularity: gran}
	switch gran {
	case hafalan.GranularityWeekly:
		sel.Week = q.Week
	case hafalan.GranularityDaily:
		sel.Date = q.Date
	}
	if err := sel.Validate(); err != nil {
		return hafalan.PeriodSelector{}, "", err
	}
	set, err := clustering.ParseFeatureSet(q.FeatureSet)
	if err != nil {
		return hafalan.PeriodSelector{}, "", err
	}
	if math.IsNaN(q.WinsorizeLimit) || q.WinsorizeLimit < 0 || q.WinsorizeLimit >= 0.5 {
		return hafalan.PeriodSelector{}, "", errors.New("winsorize limit must be in [0, 0.5)")
	}
	return sel, set, nil
}

// CacheKey - ключ кэша; начинается с периода, чтобы инвалидация шла по префиксу.
func (q RunAnalysisQuery) CacheKey(sel hafalan.PeriodSelector, set clustering.FeatureSet) string {
	return fmt.Sprintf("%s:%s:%d:%s:k%d:%s:d%t:e%t:w%s",
		sel.Period.String(), sel.Granularity, sel.Week, sel.Date, q.K, set,
		q.Diagnostic, q.Elbow, strconv.FormatFloat(q.WinsorizeLimit, 'f', -1, 64))
}

// RunAnalysisHandler обрабатывает RunAnalysisQuery.
type RunAnalysisHandler struct {
	records    hafalan.RecordRepository
	normalizer hafalan.Normalizer
	engine     *clustering.Engine
	cache      ReportCache
	metrics    Recorder
	log        *logger.Logger
	now        func() time.Time
}

// NewRunAnalysisHandler создаёт обработчик. cache и metrics могут быть nil.
func NewRunAnalysisHandler(
	records hafalan.RecordRepository,
	normalizer hafalan.Normalizer,
	engine *clustering.Engine,
	cache ReportCache,
	metrics Recorder,
	log *logger.Logger,
) *RunAnalysisHandler {
	if cache == nil {
		cache = NopCache()
	}
	if metrics == nil {
		metrics = NopRecorder()
	}
	if log == nil {
		log = logger.Default()
	}
	return &RunAnalysisHandler{
		records:    records,
		normalizer: normalizer,
		engine:     engine,
		cache:      cache,
		metrics:    metrics,
		log:        log.With(logger.Component("analysis")),
		now:        time.Now,
	}
}

// Handle выполняет анализ.
func (h *RunAnalysisHandler) Handle(ctx context.Context, q RunAnalysisQuery) (*report.Report, error) {
	start := time.Now()

	sel, set, err := q.Validate()
	if err != nil {
		h.metrics.ObserveAnalysis(OutcomeInvalid, time.Since(start), 0)
		return nil, shared.WrapError("query", "RunAnalysis", shared.ErrValidation, err.Error(), err)
	}
	// K проверяется до загрузки данных.
	if err := clustering.ValidateK(q.K); err != nil {
		h.metrics.ObserveAnalysis(OutcomeDegenerate, time.Since(start), 0)
		return nil, err
	}

	key := q.CacheKey(sel, set)
	if !q.SkipCache {
		if rep, err := h.cache.GetReport(ctx, key); err == nil && rep != nil {
			h.metrics.ObserveAnalysis(OutcomeCached, time.Since(start), rep.Students)
			return rep, nil
		} else if err != nil && !errors.Is(err, ErrCacheMiss) {
			h.log.Warn("report cache read failed", logger.Err(err), logger.Period(sel.String()))
		}
	}

	// Один запрос к хранилищу на весь период.
	raws, err := h.records.FindByPeriod(ctx, sel.Period)
	if err != nil {
		h.metrics.ObserveAnalysis(OutcomeUpstream, time.Since(start), 0)
		return nil, shared.WrapError("query", "RunAnalysis", shared.ErrUpstreamUnavailable,
			"failed to load records", err)
	}

	selected := make([]hafalan.RawRecord, 0, len(raws))
	for _, raw := range raws {
		if sel.MatchesRaw(raw) {
			selected = append(selected, raw)
		}
	}

	normalized, screening := h.normalizer.NormalizeAll(selected)
	h.metrics.ObserveScreening(screening.Before, screening.After)
	h.log.Debug("records screened",
		logger.Period(sel.String()),
		logger.Int("before", screening.Before),
		logger.Int("after", screening.After),
	)

	if screening.After < MinScreenedRows {
		h.metrics.ObserveAnalysis(OutcomeInsufficient, time.Since(start), 0)
		return nil, shared.WrapError("query", "RunAnalysis", shared.ErrInsufficientData,
			"not enough valid records after screening",
			fmt.Errorf("%d of %d records usable", screening.After, screening.Before))
	}

	rows := clustering.Aggregate(normalized)
	res, err := h.engine.Run(rows, clustering.Params{
		K:              q.K,
		FeatureSet:     set,
		Diagnostic:     q.Diagnostic,
		Elbow:          q.Elbow,
		WinsorizeLimit: q.WinsorizeLimit,
	})
	if err != nil {
		outcome := OutcomeInvalid
		switch {
		case errors.Is(err, shared.ErrInsufficientData):
			outcome = OutcomeInsufficient
		case errors.Is(err, shared.ErrDegenerateCluster):
			outcome = OutcomeDegenerate
		}
		h.metrics.ObserveAnalysis(outcome, time.Since(start), len(rows))
		return nil, err
	}

	rep, err := report.Assemble(report.Input{
		Selector:   sel,
		FeatureSet: set,
		Screening:  screening,
		Now:        h.now(),
	}, res)
	if err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}

	if err := h.cache.SetReport(ctx, key, rep); err != nil {
		h.log.Warn("report cache write failed", logger.Err(err), logger.Period(sel.String()))
	}

	took := time.Since(start)
	h.metrics.ObserveAnalysis(OutcomeOK, took, rep.Students)
	h.log.Info("analysis completed",
		logger.Period(sel.String()),
		logger.ClusterK(q.K),
		logger.Rows(rep.Students),
		logger.Latency(took),
	)
	return rep, nil
}
