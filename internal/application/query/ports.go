// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/application/report"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Интерфейсы, которые реализует инфраструктура (Redis, Prometheus).
// ══════════════════════════════════════════════════════════════════════════════

// ErrCacheMiss возвращается кэшем, если отчёта нет.
var ErrCacheMiss = errors.New("report cache miss")

// ReportCache хранит готовые отчёты по ключу запроса.
type ReportCache interface {
	GetReport(ctx context.Context, key string) (*report.Report, error)
	SetReport(ctx context.Context, key string, rep *report.Report) error
	// InvalidatePeriod удаляет все отчёты периода "Mei/2025".
	InvalidatePeriod(ctx context.Context, period string) error
	InvalidateAll(ctx context.Context) error
}

// Outcome - итог запуска анализа для метрик.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeCached       Outcome = "cached"
	OutcomeInsufficient Outcome = "insufficient_data"
	OutcomeDegenerate   Outcome = "degenerate_cluster"
	OutcomeUpstream     Outcome = "upstream_unavailable"
	OutcomeInvalid      Outcome = "invalid"
)

// Recorder принимает метрики анализа.
type Recorder interface {
	ObserveAnalysis(outcome Outcome, took time.Duration, students int)
	ObserveScreening(before, after int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAnalysis(Outcome, time.Duration, int) {}
func (nopRecorder) ObserveScreening(int, int)                  {}

// NopRecorder - Recorder без побочных эффектов.
func NopRecorder() Recorder { return nopRecorder{} }

type nopCache struct{}

func (nopCache) GetReport(context.Context, string) (*report.Report, error) { return nil, ErrCacheMiss }
func (nopCache) SetReport(context.Context, string, *report.Report) error  { return nil }
func (nopCache) InvalidatePeriod(context.Context, string) error          { return nil }
func (nopCache) InvalidateAll(context.Context) error                     { return nil }

// NopCache - кэш, который ничего не хранит.
func NopCache() ReportCache { return nopCache{} }
