package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/clients"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/metrics"
	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

// OrchestratorClient is the node RPC surface the poller needs.
type OrchestratorClient interface {
	GetIdentity(ctx context.Context, endpoint string) (*clients.Identity, error)
	GetStatus(ctx context.Context, endpoint string) (*clients.Status, error)
}

// StatusCache is the slice of the cache layer the poller touches after
// a round: refreshing the fleet summary and dropping stale statistics.
type StatusCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// StatusBroadcaster pushes a fleet summary to connected clients.
type StatusBroadcaster interface {
	BroadcastStatus(summary *FleetSummary)
}

// NodeStatusView is one node's latest observation as served to clients.
type NodeStatusView struct {
	NodeID         uint                             `json:"node_id"`
	Name           string                           `json:"name"`
	PillarName     string                           `json:"pillar_name,omitempty"`
	State          *int                             `json:"state,omitempty"`
	StateName      string                           `json:"state_name,omitempty"`
	IsOnline       bool                             `json:"is_online"`
	ResponseTimeMs *int                             `json:"response_time_ms,omitempty"`
	Error          string                           `json:"error,omitempty"`
	Networks       map[string]clients.NetworkCounts `json:"networks,omitempty"`
}

// FleetSummary aggregates one poll round.
type FleetSummary struct {
	Timestamp     time.Time        `json:"timestamp"`
	Total         int              `json:"total"`
	Online        int              `json:"online"`
	Offline       int              `json:"offline"`
	MinOnline     int              `json:"min_online"`
	BridgeHealthy bool             `json:"bridge_healthy"`
	Nodes         []NodeStatusView `json:"nodes"`
}

// OrchestratorPollService polls the signer fleet on a fixed interval.
// Node failures are isolated: an unreachable node becomes an offline
// snapshot carrying the error text, and the round still completes.
type OrchestratorPollService struct {
	client OrchestratorClient
	repo   repository.OrchestratorRepository
	cache  StatusCache
	hub    StatusBroadcaster
	cfg    *config.OrchestratorConfig
	ttl    time.Duration
	logger *logrus.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewOrchestratorPollService wires the poller. hub may be nil when no
// websocket surface exists (the bridge worker binary).
func NewOrchestratorPollService(
	client OrchestratorClient,
	repo repository.OrchestratorRepository,
	cache StatusCache,
	hub StatusBroadcaster,
	cfg *config.OrchestratorConfig,
	statusTTL time.Duration,
	logger *logrus.Logger,
) *OrchestratorPollService {
	return &OrchestratorPollService{
		client:   client,
		repo:     repo,
		cache:    cache,
		hub:      hub,
		cfg:      cfg,
		ttl:      statusTTL,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Run polls immediately, then on every tick until stopped.
func (s *OrchestratorPollService) Run(ctx context.Context) {
	s.pollRound(ctx)

	ticker := time.NewTicker(time.Duration(s.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.pollRound(ctx)
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (s *OrchestratorPollService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// pollRound queries every active node under a bounded amount of
// concurrency, persists the round in one transaction and refreshes
// the cached summary.
func (s *OrchestratorPollService) pollRound(ctx context.Context) {
	started := time.Now()

	nodes, err := s.repo.ListNodes(ctx, true)
	if err != nil {
		s.logger.WithError(err).Error("poll round aborted, could not list nodes")
		return
	}
	if len(nodes) == 0 {
		return
	}

	snapshots := make([]models.OrchestratorSnapshot, len(nodes))
	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node models.OrchestratorNode) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			snapshots[i] = s.pollNode(ctx, node)
		}(i, node)
	}
	wg.Wait()

	if err := s.repo.SaveRound(ctx, snapshots); err != nil {
		s.logger.WithError(err).Error("failed to persist poll round")
		return
	}

	summary := s.buildSummary(nodes, snapshots)

	metrics.PollRoundDuration.Observe(time.Since(started).Seconds())
	metrics.NodesPolled.Set(float64(summary.Total))
	metrics.NodesOnline.Set(float64(summary.Online))

	if s.cache != nil {
		if err := s.cache.Set(ctx, "status:summary", summary, s.ttl); err == nil {
			if _, err := s.cache.DeletePattern(ctx, "stats:*"); err != nil {
				s.logger.WithError(err).Warn("failed to invalidate statistics cache")
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastStatus(summary)
	}

	s.logger.WithFields(logrus.Fields{
		"total":    summary.Total,
		"online":   summary.Online,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Info("📡 Poll round complete")
}

// pollNode observes one node: identity first, a short pause, then
// status. Any failure yields an offline snapshot with the error text.
func (s *OrchestratorPollService) pollNode(ctx context.Context, node models.OrchestratorNode) models.OrchestratorSnapshot {
	endpoint := clients.Endpoint(node.IPAddress, node.RPCPort)
	snapshot := models.OrchestratorSnapshot{
		NodeID:    node.ID,
		Timestamp: time.Now().UTC(),
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.RPCTimeout)*time.Second)
	defer cancel()

	started := time.Now()
	identity, err := s.client.GetIdentity(callCtx, endpoint)
	if err != nil {
		return s.offlineSnapshot(snapshot, node, err)
	}
	snapshot.PillarName = &identity.PillarName
	snapshot.ProducerAddress = &identity.ProducerAddress
	snapshot.RawIdentity = identity.Raw

	// Orchestrators reject back-to-back calls on the same connection.
	select {
	case <-time.After(time.Duration(s.cfg.InterCallDelay) * time.Millisecond):
	case <-ctx.Done():
		return s.offlineSnapshot(snapshot, node, ctx.Err())
	}

	status, err := s.client.GetStatus(callCtx, endpoint)
	if err != nil {
		return s.offlineSnapshot(snapshot, node, err)
	}

	elapsed := int(time.Since(started).Milliseconds())
	snapshot.State = &status.State
	snapshot.StateName = &status.StateName
	snapshot.IsOnline = status.Online
	snapshot.ResponseTimeMs = &elapsed
	snapshot.RawStatus = status.Raw
	for _, network := range clients.CanonicalNetworks() {
		counts := status.Networks[network]
		snapshot.NetworkStats = append(snapshot.NetworkStats, models.NetworkStats{
			Network:      network,
			WrapsCount:   counts.WrapsToSign,
			UnwrapsCount: counts.UnwrapsToSign,
		})
	}
	return snapshot
}

// offlineSnapshot marks the node offline with the error text. The
// snapshot still carries an observed zero for every canonical network
// so aggregates see a measurement, not a gap.
func (s *OrchestratorPollService) offlineSnapshot(snapshot models.OrchestratorSnapshot, node models.OrchestratorNode, err error) models.OrchestratorSnapshot {
	metrics.NodePollErrors.Inc()
	s.logger.WithError(err).WithField("node", node.Name).Warn("node poll failed")
	message := err.Error()
	snapshot.IsOnline = false
	snapshot.ErrorMessage = &message
	snapshot.NetworkStats = snapshot.NetworkStats[:0]
	for _, network := range clients.CanonicalNetworks() {
		snapshot.NetworkStats = append(snapshot.NetworkStats, models.NetworkStats{Network: network})
	}
	return snapshot
}

func (s *OrchestratorPollService) buildSummary(nodes []models.OrchestratorNode, snapshots []models.OrchestratorSnapshot) *FleetSummary {
	summary := &FleetSummary{
		Timestamp: time.Now().UTC(),
		Total:     len(nodes),
		MinOnline: s.cfg.MinOnline,
		Nodes:     make([]NodeStatusView, 0, len(nodes)),
	}
	for i, snapshot := range snapshots {
		view := NodeStatusView{
			NodeID:         snapshot.NodeID,
			Name:           nodes[i].Name,
			IsOnline:       snapshot.IsOnline,
			State:          snapshot.State,
			ResponseTimeMs: snapshot.ResponseTimeMs,
		}
		if snapshot.PillarName != nil {
			view.PillarName = *snapshot.PillarName
		}
		if snapshot.StateName != nil {
			view.StateName = *snapshot.StateName
		}
		if snapshot.ErrorMessage != nil {
			view.Error = *snapshot.ErrorMessage
		}
		if len(snapshot.NetworkStats) > 0 {
			view.Networks = make(map[string]clients.NetworkCounts, len(snapshot.NetworkStats))
			for _, stats := range snapshot.NetworkStats {
				view.Networks[stats.Network] = clients.NetworkCounts{
					WrapsToSign:   stats.WrapsCount,
					UnwrapsToSign: stats.UnwrapsCount,
				}
			}
		}
		if snapshot.IsOnline {
			summary.Online++
		}
		summary.Nodes = append(summary.Nodes, view)
	}
	summary.Offline = summary.Total - summary.Online
	summary.BridgeHealthy = summary.Online >= s.cfg.MinOnline
	return summary
}
