// Package jobs contains the background jobs run by the scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM REPORT JOB
// Пересчитывает месячный отчёт текущего периода, чтобы он лежал в кэше
// к моменту, когда пембина откроет страницу анализа.
// ══════════════════════════════════════════════════════════════════════════════

// ReportRunner - то, что умеет построить отчёт (query.RunAnalysisHandler).
type ReportRunner interface {
	Handle(ctx context.Context, q query.RunAnalysisQuery) (*report.Report, error)
}

// WarmReportConfig - параметры прогрева.
type WarmReportConfig struct {
	// K - число кластеров отчёта по умолчанию.
	K int

	// FeatureSet - full или compact.
	FeatureSet string

	// Timeout ограничивает один прогон.
	Timeout time.Duration
}

// WarmReportJob - задача прогрева кэша.
type WarmReportJob struct {
	runner ReportRunner
	config WarmReportConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewWarmReportJob создаёт задачу.
func NewWarmReportJob(runner ReportRunner, cfg WarmReportConfig, log *logger.Logger) *WarmReportJob {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &WarmReportJob{
		runner: runner,
		config: cfg,
		log:    log.With(logger.Component("warm_report")),
		now:    timeutil.Now,
	}
}

// Name returns the job name.
func (j *WarmReportJob) Name() string { return "warm_report" }

// Description returns the job description.
func (j *WarmReportJob) Description() string {
	return "rebuilds the current month's tier report into the cache"
}

// Run строит отчёт за текущий месяц (по WIB) в обход кэша.
// Нехватка данных в начале месяца - не ошибка задачи.
func (j *WarmReportJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	period := hafalan.PeriodOf(j.now())
	rep, err := j.runner.Handle(ctx, query.RunAnalysisQuery{
		Month:      period.Month,
		Year:       period.Year,
		K:          j.config.K,
		FeatureSet: j.config.FeatureSet,
		SkipCache:  true,
	})
	if err != nil {
		if shared.IsPipeline(err) {
			j.log.Info("report not ready", logger.Period(period.String()), logger.Err(err))
			return nil
		}
		return err
	}
	j.log.Debug("report warmed", logger.Period(period.String()), logger.Int("students", rep.Students))
	return nil
}
