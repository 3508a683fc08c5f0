package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "hafalan:report:Mei/2025:monthly:0::k3", ReportKey("Mei/2025:monthly:0::k3"))
	assert.Equal(t, "hafalan:report:Mei/2025:*", PeriodPattern("Mei/2025"))
}

func TestReportCodec(t *testing.T) {
	s := 0.42
	rep := &report.Report{
		Selector: hafalan.PeriodSelector{Period: hafalan.PeriodKey{Month: "Mei", Year: "2025"}},
		K:        3,
		Features: clustering.FeatureSetFull.Features(),
		Rows: []report.Row{{
			StudentName:   "Ahmad",
			FluencyReview: hafalan.Score{},
			FluencyTotal:  hafalan.ScoreOf(8.5),
			Label:         clustering.LabelTop,
		}},
		Silhouette:  &s,
		GeneratedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := encodeReport(rep)
	require.NoError(t, err)
	back, err := decodeReport(data)
	require.NoError(t, err)

	assert.Equal(t, rep.Selector, back.Selector)
	assert.Equal(t, rep.Rows, back.Rows)
	require.NotNil(t, back.Silhouette)
	assert.InDelta(t, 0.42, *back.Silhouette, 1e-12)
	assert.True(t, rep.GeneratedAt.Equal(back.GeneratedAt))

	_, err = encodeReport(nil)
	assert.ErrorIs(t, err, ErrCacheNilValue)
	_, err = decodeReport([]byte("{"))
	assert.ErrorIs(t, err, ErrCacheSerialization)
}

func TestEmptyKeysRejectedWithoutNetwork(t *testing.T) {
	c := NewCacheFromClient(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), 0)
	defer c.Close()
	ctx := context.Background()

	_, err := c.GetReport(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.SetReport(ctx, "", &report.Report{}), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.SetReport(ctx, "k", nil), ErrCacheNilValue)
	assert.ErrorIs(t, c.InvalidatePeriod(ctx, ""), ErrCacheKeyEmpty)
	assert.Equal(t, TTLReport, c.ttl)
}
