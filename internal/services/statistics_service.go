package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/cache"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

// StatsCache is the cache-aside surface for computed statistics.
type StatsCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func() (interface{}, error)) error
}

// BridgeStatistics aggregates mirror-wide counts.
type BridgeStatistics struct {
	WrapCount      int64                    `json:"wrap_count"`
	UnwrapCount    int64                    `json:"unwrap_count"`
	PendingWraps   int64                    `json:"pending_wraps"`
	PendingUnwraps int64                    `json:"pending_unwraps"`
	WrapVolumes    []repository.TokenVolume `json:"wrap_volumes"`
	UnwrapVolumes  []repository.TokenVolume `json:"unwrap_volumes"`
}

// NetworkStatistics is directional totals for one chain.
type NetworkStatistics struct {
	ChainID        int   `json:"chain_id"`
	Wraps          int64 `json:"wraps"`
	Unwraps        int64 `json:"unwraps"`
	PendingWraps   int64 `json:"pending_wraps"`
	PendingUnwraps int64 `json:"pending_unwraps"`
}

// HealthTimeline is fleet and bridge activity over a window, bucketed
// into fixed widths.
type HealthTimeline struct {
	Window      string                   `json:"window"`
	BucketWidth string                   `json:"bucket_width"`
	Fleet       []repository.FleetBucket `json:"fleet"`
	Wraps       []repository.BucketCount `json:"wraps"`
	Unwraps     []repository.BucketCount `json:"unwraps"`
}

// StatisticsService computes aggregate views over the mirror and the
// poll history. Everything here is cache-aside with the stats TTL; the
// poller additionally drops stats keys after every round so clients
// never see a summary older than one poll interval.
type StatisticsService struct {
	bridgeRepo repository.BridgeRepository
	orchRepo   repository.OrchestratorRepository
	cache      StatsCache
	ttl        time.Duration
	logger     *logrus.Logger
}

// NewStatisticsService wires the statistics service.
func NewStatisticsService(
	bridgeRepo repository.BridgeRepository,
	orchRepo repository.OrchestratorRepository,
	statsCache StatsCache,
	ttl time.Duration,
	logger *logrus.Logger,
) *StatisticsService {
	return &StatisticsService{
		bridgeRepo: bridgeRepo,
		orchRepo:   orchRepo,
		cache:      statsCache,
		ttl:        ttl,
		logger:     logger,
	}
}

var bucketWidths = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

// BucketWidthFor picks the smallest standard bucket width that keeps a
// window under roughly 120 buckets.
func BucketWidthFor(window time.Duration) time.Duration {
	for _, width := range bucketWidths {
		if window/width <= 120 {
			return width
		}
	}
	return bucketWidths[len(bucketWidths)-1]
}

// BridgeStats returns mirror-wide totals and per-token volumes.
func (s *StatisticsService) BridgeStats(ctx context.Context) (*BridgeStatistics, error) {
	var stats BridgeStatistics
	err := s.cache.GetOrSet(ctx, "stats:bridge", &stats, s.ttl, func() (interface{}, error) {
		return s.loadBridgeStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatisticsService) loadBridgeStats(ctx context.Context) (*BridgeStatistics, error) {
	wrapVolumes, err := s.bridgeRepo.WrapVolumes(ctx)
	if err != nil {
		return nil, err
	}
	unwrapVolumes, err := s.bridgeRepo.UnwrapVolumes(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BridgeStatistics{
		WrapVolumes:   wrapVolumes,
		UnwrapVolumes: unwrapVolumes,
	}
	for _, v := range wrapVolumes {
		stats.WrapCount += v.Count
		stats.PendingWraps += v.PendingCount
	}
	for _, v := range unwrapVolumes {
		stats.UnwrapCount += v.Count
		stats.PendingUnwraps += v.PendingCount
	}
	return stats, nil
}

// NetworkStats returns directional totals grouped per chain.
func (s *StatisticsService) NetworkStats(ctx context.Context) ([]NetworkStatistics, error) {
	var stats []NetworkStatistics
	err := s.cache.GetOrSet(ctx, "stats:networks", &stats, s.ttl, func() (interface{}, error) {
		return s.loadNetworkStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *StatisticsService) loadNetworkStats(ctx context.Context) ([]NetworkStatistics, error) {
	wrapVolumes, err := s.bridgeRepo.WrapVolumes(ctx)
	if err != nil {
		return nil, err
	}
	unwrapVolumes, err := s.bridgeRepo.UnwrapVolumes(ctx)
	if err != nil {
		return nil, err
	}
	return mergeNetworkVolumes(wrapVolumes, unwrapVolumes), nil
}

// mergeNetworkVolumes folds per-token volumes into per-chain totals,
// ordered by chain id.
func mergeNetworkVolumes(wraps, unwraps []repository.TokenVolume) []NetworkStatistics {
	byChain := make(map[int]*NetworkStatistics)
	var order []int
	get := func(chainID int) *NetworkStatistics {
		if stats, ok := byChain[chainID]; ok {
			return stats
		}
		stats := &NetworkStatistics{ChainID: chainID}
		byChain[chainID] = stats
		order = append(order, chainID)
		return stats
	}

	for _, v := range wraps {
		stats := get(v.ChainID)
		stats.Wraps += v.Count
		stats.PendingWraps += v.PendingCount
	}
	for _, v := range unwraps {
		stats := get(v.ChainID)
		stats.Unwraps += v.Count
		stats.PendingUnwraps += v.PendingCount
	}

	sort.Ints(order)
	out := make([]NetworkStatistics, 0, len(order))
	for _, chainID := range order {
		out = append(out, *byChain[chainID])
	}
	return out
}

// Uptime returns per-node uptime over the window.
func (s *StatisticsService) Uptime(ctx context.Context, window time.Duration) ([]repository.NodeUptime, error) {
	key := fmt.Sprintf("stats:uptime:%dh", int(window.Hours()))
	var uptimes []repository.NodeUptime
	err := s.cache.GetOrSet(ctx, key, &uptimes, s.ttl, func() (interface{}, error) {
		return s.orchRepo.UptimeSince(ctx, time.Now().UTC().Add(-window))
	})
	if err != nil {
		return nil, err
	}
	return uptimes, nil
}

// HealthOverTime returns the bucketed fleet and activity timeline.
func (s *StatisticsService) HealthOverTime(ctx context.Context, window time.Duration) (*HealthTimeline, error) {
	width := BucketWidthFor(window)
	key := fmt.Sprintf("stats:health:%dh", int(window.Hours()))

	var timeline HealthTimeline
	err := s.cache.GetOrSet(ctx, key, &timeline, s.ttl, func() (interface{}, error) {
		return s.loadHealthTimeline(ctx, window, width)
	})
	if err != nil {
		return nil, err
	}
	return &timeline, nil
}

func (s *StatisticsService) loadHealthTimeline(ctx context.Context, window, width time.Duration) (*HealthTimeline, error) {
	since := time.Now().UTC().Add(-window)

	fleet, err := s.orchRepo.FleetActivity(ctx, since, width)
	if err != nil {
		return nil, err
	}
	wraps, err := s.bridgeRepo.WrapActivity(ctx, since, width)
	if err != nil {
		return nil, err
	}
	unwraps, err := s.bridgeRepo.UnwrapActivity(ctx, since, width)
	if err != nil {
		return nil, err
	}

	return &HealthTimeline{
		Window:      window.String(),
		BucketWidth: width.String(),
		Fleet:       fleet,
		Wraps:       wraps,
		Unwraps:     unwraps,
	}, nil
}

var _ StatsCache = (*cache.Service)(nil)
