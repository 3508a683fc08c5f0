package query

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/memory"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type countingClusterer struct {
	inner clustering.Clusterer
	calls int
}

func (c *countingClusterer) Cluster(points [][]float64, k, nInit int) clustering.Fit {
	c.calls++
	return c.inner.Cluster(points, k, nInit)
}

type mapCache struct {
	mu      sync.Mutex
	reports map[string]*report.Report
	sets    int
}

func (m *mapCache) GetReport(_ context.Context, key string) (*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rep, ok := m.reports[key]; ok {
		return rep, nil
	}
	return nil, ErrCacheMiss
}

func (m *mapCache) SetReport(_ context.Context, key string, rep *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports == nil {
		m.reports = make(map[string]*report.Report)
	}
	m.reports[key] = rep
	m.sets++
	return nil
}

func (m *mapCache) InvalidatePeriod(context.Context, string) error { return nil }
func (m *mapCache) InvalidateAll(context.Context) error            { return nil }

type outcomeRecorder struct {
	outcomes []Outcome
}

func (r *outcomeRecorder) ObserveAnalysis(o Outcome, _ time.Duration, _ int) {
	r.outcomes = append(r.outcomes, o)
}
func (r *outcomeRecorder) ObserveScreening(int, int) {}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

type level struct {
	chapters  []int
	current   int
	memorized int
	submitted int
	fluency   float64
	attended  bool
}

// seedMay stores four Monday records (weeks 1..4) of Mei/2025 per student.
func seedMay(t *testing.T, store *memory.Store, levels map[string]level) {
	t.Helper()
	ctx := context.Background()
	for name, lv := range levels {
		require.NoError(t, store.Students().Save(ctx, hafalan.Santri{Name: name, Gender: hafalan.GenderMale}))
		for _, day := range []int{5, 12, 19, 26} {
			_, err := store.Records().Save(ctx, hafalan.DailyRecord{
				StudentName:       name,
				Date:              timeutil.Date(2025, 5, day),
				Attended:          lv.attended,
				ChaptersCompleted: lv.chapters,
				CurrentChapter:    lv.current,
				VersesMemorized:   lv.memorized + day,
				VersesSubmitted:   lv.submitted,
				FluencyRecitation: lv.fluency,
				FluencyReview:     lv.fluency,
				FluencyTadarus:    lv.fluency,
			})
			require.NoError(t, err)
		}
	}
}

func threeStudents() map[string]level {
	return map[string]level{
		"Ahmad": {chapters: []int{30, 29, 28}, current: 27, memorized: 60, submitted: 20, fluency: 9, attended: true},
		"Bilal": {chapters: []int{30}, current: 29, memorized: 30, submitted: 10, fluency: 7, attended: true},
		"Citra": {chapters: nil, current: 30, memorized: 5, submitted: 2, fluency: 4, attended: false},
	}
}

func newHandler(store *memory.Store, c clustering.Clusterer, cache ReportCache, rec Recorder) *RunAnalysisHandler {
	var opts []clustering.EngineOption
	if c != nil {
		opts = append(opts, clustering.WithClusterer(c))
	}
	h := NewRunAnalysisHandler(
		store.Records(),
		hafalan.NewNormalizer(hafalan.DefaultScaleMax),
		clustering.NewEngine(clustering.DefaultSeed, opts...),
		cache, rec, logger.Discard(),
	)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

// ──────────────────────────────────────────────────────────────────────────────
// Run analysis
// ──────────────────────────────────────────────────────────────────────────────

func TestRunAnalysis_MonthlyEndToEnd(t *testing.T) {
	store := memory.New()
	seedMay(t, store, threeStudents())
	counter := &countingClusterer{inner: clustering.NewKMeans(clustering.DefaultSeed)}
	h := newHandler(store, counter, nil, nil)

	rep, err := h.Handle(context.Background(), RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Loads, "one batched read per report")
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 12, rep.Screening.Before)
	assert.Equal(t, 12, rep.Screening.After)
	assert.Equal(t, 3, rep.Students)

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, "Ahmad", rep.Rows[0].StudentName)
	assert.Equal(t, clustering.LabelTop, rep.Rows[0].Label)
	assert.Equal(t, "Bilal", rep.Rows[1].StudentName)
	assert.Equal(t, clustering.LabelMid, rep.Rows[1].Label)
	assert.Equal(t, "Citra", rep.Rows[2].StudentName)
	assert.Equal(t, clustering.LabelNeedsSupport, rep.Rows[2].Label)

	assert.Equal(t, 4, rep.Rows[0].RecordCount)
	assert.InDelta(t, 1.0, rep.Rows[0].AttendanceRate, 1e-9)
	assert.InDelta(t, 0.0, rep.Rows[2].AttendanceRate, 1e-9)
	assert.Greater(t, rep.Rows[0].WeightedMemorized, rep.Rows[1].WeightedMemorized)

	for _, tc := range rep.TierCounts {
		assert.Equal(t, 1, tc.Count)
	}
	assert.Equal(t, "Mei/2025", rep.Selector.String())
}

func TestRunAnalysis_WeeklySelectsOneWeek(t *testing.T) {
	store := memory.New()
	seedMay(t, store, threeStudents())
	h := newHandler(store, nil, nil, nil)

	rep, err := h.Handle(context.Background(), RunAnalysisQuery{
		Month: "Mei", Year: "2025", K: 2, Granularity: "weekly", Week: 2,
		FeatureSet: "compact",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Screening.Before)
	for _, r := range rep.Rows {
		assert.Equal(t, 1, r.RecordCount)
	}
	assert.Equal(t, clustering.FeatureSetCompact, rep.FeatureSet)
	assert.Equal(t, "Minggu ke-2 Mei/2025", rep.Selector.String())
}

func TestRunAnalysis_DailyAndDiagnostics(t *testing.T) {
	store := memory.New()
	levels := threeStudents()
	levels["Dewi"] = level{chapters: []int{29}, current: 28, memorized: 25, submitted: 8, fluency: 6, attended: true}
	seedMay(t, store, levels)
	h := newHandler(store, nil, nil, nil)

	rep, err := h.Handle(context.Background(), RunAnalysisQuery{
		Month: "Mei", Year: "2025", K: 2, Granularity: "daily", Date: "2025-05-19",
		Diagnostic: true, Elbow: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Students)
	require.NotNil(t, rep.Diagnostic)
	assert.Len(t, rep.Diagnostic.ExplainedVarianceRatio, 2)
	// K = 2..min(8, N-1)
	assert.Len(t, rep.Elbow, 2)
}

func TestRunAnalysis_InsufficientDataNeverClusters(t *testing.T) {
	store := memory.New()
	store.PutRaw(hafalan.RawRecord{
		hafalan.FieldName: "Ahmad", hafalan.FieldMonth: "Mei", hafalan.FieldYear: "2025",
		hafalan.FieldDateStr: "2025-05-05", hafalan.FieldCurrentChapter: 30,
		hafalan.FieldVersesMemorized: 10, hafalan.FieldVersesSubmitted: 2,
	})
	store.PutRaw(hafalan.RawRecord{
		hafalan.FieldName: "Bilal", hafalan.FieldMonth: "Mei", hafalan.FieldYear: "2025",
		hafalan.FieldDateStr: "2025-05-05", hafalan.FieldCurrentChapter: "abc",
		hafalan.FieldVersesMemorized: 10,
	})
	counter := &countingClusterer{inner: clustering.NewKMeans(clustering.DefaultSeed)}
	rec := &outcomeRecorder{}
	h := newHandler(store, counter, nil, rec)

	_, err := h.Handle(context.Background(), RunAnalysisQuery{Month: "Mei", Year: "2025", K: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInsufficientData)
	assert.Zero(t, counter.calls)
	assert.Equal(t, []Outcome{OutcomeInsufficient}, rec.outcomes)
}

func TestRunAnalysis_FewerStudentsThanK(t *testing.T) {
	store := memory.New()
	levels := threeStudents()
	delete(levels, "Citra")
	seedMay(t, store, levels)
	counter := &countingClusterer{inner: clustering.NewKMeans(clustering.DefaultSeed)}
	h := newHandler(store, counter, nil, nil)

	_, err := h.Handle(context.Background(), RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3})
	assert.ErrorIs(t, err, shared.ErrInsufficientData)
	assert.Zero(t, counter.calls)
}

func TestRunAnalysis_BadKSkipsStore(t *testing.T) {
	store := memory.New()
	seedMay(t, store, threeStudents())
	h := newHandler(store, nil, nil, nil)

	for _, k := range []int{0, 1, 9} {
		_, err := h.Handle(context.Background(), RunAnalysisQuery{Month: "Mei", Year: "2025", K: k})
		assert.ErrorIs(t, err, shared.ErrDegenerateCluster, "k=%d", k)
	}
	assert.Zero(t, store.Loads)
}

func TestRunAnalysis_RejectsBadWinsorizeLimit(t *testing.T) {
	store := memory.New()
	seedMay(t, store, threeStudents())
	h := newHandler(store, nil, nil, nil)

	for _, limit := range []float64{math.NaN(), -0.1, 0.5, math.Inf(1)} {
		_, err := h.Handle(context.Background(), RunAnalysisQuery{
			Month: "Mei", Year: "2025", K: 2, Diagnostic: true, WinsorizeLimit: limit,
		})
		assert.ErrorIs(t, err, shared.ErrValidation, "limit=%v", limit)
	}
	assert.Zero(t, store.Loads)
}

func TestRunAnalysis_ValidationAndUpstream(t *testing.T) {
	store := memory.New()
	h := newHandler(store, nil, nil, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, RunAnalysisQuery{Month: "Maybe", Year: "2025", K: 3})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(ctx, RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3, Granularity: "weekly", Week: 6})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(ctx, RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3, Granularity: "daily", Date: "2025-06-01"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	store.FailWith = errors.New("dial tcp: refused")
	_, err = h.Handle(ctx, RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3})
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
}

func TestRunAnalysis_UsesCache(t *testing.T) {
	store := memory.New()
	seedMay(t, store, threeStudents())
	cache := &mapCache{}
	rec := &outcomeRecorder{}
	h := newHandler(store, nil, cache, rec)
	ctx := context.Background()
	q := RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3}

	first, err := h.Handle(ctx, q)
	require.NoError(t, err)
	second, err := h.Handle(ctx, q)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, store.Loads)
	assert.Equal(t, []Outcome{OutcomeOK, OutcomeCached}, rec.outcomes)

	q.SkipCache = true
	_, err = h.Handle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Loads)
}

func TestRunAnalysis_Deterministic(t *testing.T) {
	store := memory.New()
	levels := threeStudents()
	levels["Dewi"] = level{chapters: []int{29}, current: 28, memorized: 25, submitted: 8, fluency: 6, attended: true}
	levels["Eko"] = level{chapters: []int{30, 29}, current: 28, memorized: 45, submitted: 15, fluency: 8, attended: true}
	seedMay(t, store, levels)

	a, err := newHandler(store, nil, nil, nil).Handle(context.Background(), RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3})
	require.NoError(t, err)
	b, err := newHandler(store, nil, nil, nil).Handle(context.Background(), RunAnalysisQuery{Month: "Mei", Year: "2025", K: 3})
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.Inertia, b.Inertia)
}

// ──────────────────────────────────────────────────────────────────────────────
// Record views
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordsByDate_SortedWithScreening(t *testing.T) {
	store := memory.New()
	seedMay(t, store, threeStudents())
	store.PutRaw(hafalan.RawRecord{
		hafalan.FieldName: "Aaron", hafalan.FieldDateStr: "2025-05-12",
		hafalan.FieldMonth: "Mei", hafalan.FieldYear: "2025",
	})
	h := NewRecordsByDateHandler(store.Records(), hafalan.NewNormalizer(10))

	res, err := h.Handle(context.Background(), RecordsByDateQuery{Date: "2025-05-12"})
	require.NoError(t, err)
	assert.Equal(t, "Senin", res.Weekday)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "Aaron", res.Records[0].StudentName)
	assert.Nil(t, res.Records[0].Normalized)
	assert.Contains(t, res.Records[0].FailedFields, hafalan.FieldCurrentChapter)
	assert.Equal(t, "Ahmad", res.Records[1].StudentName)
	require.NotNil(t, res.Records[1].Normalized)

	_, err = h.Handle(context.Background(), RecordsByDateQuery{Date: "12-05-2025"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStudentHistory_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedMay(t, store, threeStudents())
	require.NoError(t, store.Summaries().Upsert(ctx, hafalan.MonthlySummary{StudentName: "Bilal", Month: "Mei", Year: "2025"}))
	require.NoError(t, store.Summaries().Upsert(ctx, hafalan.MonthlySummary{StudentName: "Bilal", Month: "April", Year: "2025"}))
	h := NewStudentHistoryHandler(store.Students(), store.Records(), store.Summaries(), hafalan.NewNormalizer(10))

	res, err := h.Handle(ctx, StudentHistoryQuery{Name: "Bilal"})
	require.NoError(t, err)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "2025-05-26", res.Records[0].DateStr)
	assert.Equal(t, "2025-05-05", res.Records[3].DateStr)
	require.Len(t, res.Summaries, 2)
	assert.Equal(t, "April", res.Summaries[0].Month)

	_, err = h.Handle(ctx, StudentHistoryQuery{Name: "Ghost"})
	assert.True(t, shared.IsNotFound(err))
}

func TestListSummariesAndExport(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedMay(t, store, threeStudents())
	require.NoError(t, store.Summaries().Upsert(ctx, hafalan.MonthlySummary{StudentName: "Citra", Month: "Mei", Year: "2025"}))
	require.NoError(t, store.Summaries().Upsert(ctx, hafalan.MonthlySummary{StudentName: "Ahmad", Month: "Mei", Year: "2025"}))
	require.NoError(t, store.Summaries().Upsert(ctx, hafalan.MonthlySummary{StudentName: "Ahmad", Month: "Juni", Year: "2025"}))

	sums, err := NewListSummariesHandler(store.Summaries()).Handle(ctx, ListSummariesQuery{Month: "mei", Year: "2025"})
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "Ahmad", sums[0].StudentName)

	students, err := NewListStudentsHandler(store.Students()).Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ahmad", students[0].Name)

	dump, err := NewExportHandler(store).Handle(ctx)
	require.NoError(t, err)
	assert.Len(t, dump.Students, 3)
	assert.Len(t, dump.Records, 12)
	assert.Len(t, dump.Summaries, 3)
}
