package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

type stubRunner struct {
	got []query.RunAnalysisQuery
	err error
}

func (r *stubRunner) Handle(_ context.Context, q query.RunAnalysisQuery) (*report.Report, error) {
	r.got = append(r.got, q)
	if r.err != nil {
		return nil, r.err
	}
	return &report.Report{Students: 3}, nil
}

func newJob(r ReportRunner) *WarmReportJob {
	j := NewWarmReportJob(r, WarmReportConfig{K: 3, FeatureSet: "full"}, logger.Discard())
	// 23:30 UTC on 31 May is already 1 June in WIB.
	j.now = func() time.Time { return time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC) }
	return j
}

func TestWarmReport_BuildsCurrentMonthBypassingCache(t *testing.T) {
	runner := &stubRunner{}
	require.NoError(t, newJob(runner).Run(context.Background()))

	require.Len(t, runner.got, 1)
	q := runner.got[0]
	assert.Equal(t, "Juni", q.Month)
	assert.Equal(t, "2025", q.Year)
	assert.Equal(t, 3, q.K)
	assert.True(t, q.SkipCache)
	assert.Equal(t, timeutil.JakartaTZ, timeutil.Now().Location())
}

func TestWarmReport_PipelineErrorsAreNotFailures(t *testing.T) {
	runner := &stubRunner{err: shared.NewDomainError("query", "RunAnalysis", shared.ErrInsufficientData, "not enough")}
	assert.NoError(t, newJob(runner).Run(context.Background()))

	runner.err = shared.NewDomainError("query", "RunAnalysis", shared.ErrUpstreamUnavailable, "down")
	assert.True(t, errors.Is(newJob(runner).Run(context.Background()), shared.ErrUpstreamUnavailable))
}
