package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

func TestBucketWidthFor(t *testing.T) {
	cases := []struct {
		window time.Duration
		want   time.Duration
	}{
		{time.Hour, time.Minute},
		{2 * time.Hour, time.Minute},
		{6 * time.Hour, 5 * time.Minute},
		{24 * time.Hour, 15 * time.Minute},
		{7 * 24 * time.Hour, time.Hour},
		{30 * 24 * time.Hour, 6 * time.Hour},
		{365 * 24 * time.Hour, 24 * time.Hour},
	}
	for _, tc := range cases {
		got := BucketWidthFor(tc.window)
		assert.Equal(t, tc.want, got, "window %s", tc.window)
		// the pick never exceeds ~120 buckets unless it's at the
		// widest width already
		if got != 24*time.Hour {
			assert.LessOrEqual(t, int64(tc.window/got), int64(120))
		}
	}
}

func TestMergeNetworkVolumes(t *testing.T) {
	wraps := []repository.TokenVolume{
		{ChainID: 56, TokenSymbol: "ZNN", Count: 10, PendingCount: 2},
		{ChainID: 56, TokenSymbol: "QSR", Count: 5, PendingCount: 0},
		{ChainID: 1, TokenSymbol: "ZNN", Count: 20, PendingCount: 1},
	}
	unwraps := []repository.TokenVolume{
		{ChainID: 1, TokenSymbol: "wZNN", Count: 8, PendingCount: 3},
		{ChainID: 73405, TokenSymbol: "xZNN", Count: 4, PendingCount: 0},
	}

	merged := mergeNetworkVolumes(wraps, unwraps)

	assert.Equal(t, []NetworkStatistics{
		{ChainID: 1, Wraps: 20, Unwraps: 8, PendingWraps: 1, PendingUnwraps: 3},
		{ChainID: 56, Wraps: 15, Unwraps: 0, PendingWraps: 2, PendingUnwraps: 0},
		{ChainID: 73405, Wraps: 0, Unwraps: 4, PendingWraps: 0, PendingUnwraps: 0},
	}, merged)
}

func TestMergeNetworkVolumesEmpty(t *testing.T) {
	assert.Empty(t, mergeNetworkVolumes(nil, nil))
}
