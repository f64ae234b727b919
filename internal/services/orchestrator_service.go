package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/cache"
	"github.com/hypercore-one/bridge-monitor/internal/clients"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

// NodeCache is the cache-aside surface the read service uses.
type NodeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// OrchestratorService serves fleet status to the API layer, preferring
// the summary the poller refreshed over rebuilding from the database.
type OrchestratorService struct {
	repo   repository.OrchestratorRepository
	cache  NodeCache
	cfg    *config.OrchestratorConfig
	ttl    time.Duration
	logger *logrus.Logger
}

// NewOrchestratorService wires the read service.
func NewOrchestratorService(
	repo repository.OrchestratorRepository,
	nodeCache NodeCache,
	cfg *config.OrchestratorConfig,
	statusTTL time.Duration,
	logger *logrus.Logger,
) *OrchestratorService {
	return &OrchestratorService{repo: repo, cache: nodeCache, cfg: cfg, ttl: statusTTL, logger: logger}
}

// ListNodes returns the configured fleet.
func (s *OrchestratorService) ListNodes(ctx context.Context, activeOnly bool) ([]models.OrchestratorNode, error) {
	return s.repo.ListNodes(ctx, activeOnly)
}

// SetNodeActive toggles whether the poller includes the node.
func (s *OrchestratorService) SetNodeActive(ctx context.Context, id uint, active bool) error {
	return s.repo.SetNodeActive(ctx, id, active)
}

// GetNode returns one node by id.
func (s *OrchestratorService) GetNode(ctx context.Context, id uint) (*models.OrchestratorNode, error) {
	return s.repo.GetNode(ctx, id)
}

// Summary returns the latest fleet summary, rebuilding from the
// snapshot tables when the cached one has expired or Redis is down.
func (s *OrchestratorService) Summary(ctx context.Context) (*FleetSummary, error) {
	var cached FleetSummary
	if err := s.cache.Get(ctx, "status:summary", &cached); err == nil {
		return &cached, nil
	}

	summary, err := s.buildSummaryFromDB(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, "status:summary", summary, s.ttl)
	return summary, nil
}

// Status returns the latest snapshot per node.
func (s *OrchestratorService) Status(ctx context.Context) ([]NodeStatusView, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return summary.Nodes, nil
}

// HistoryPageResult is a paginated snapshot history listing.
type HistoryPageResult struct {
	Items  []models.OrchestratorSnapshot `json:"items"`
	Total  int64                         `json:"total"`
	Limit  int                           `json:"limit"`
	Offset int                           `json:"offset"`
}

// History returns a page of a node's snapshots inside the window, newest first.
func (s *OrchestratorService) History(ctx context.Context, nodeID uint, window time.Duration, limit, offset int) (*HistoryPageResult, error) {
	limit, offset = clampPage(limit, offset)
	since := time.Now().UTC().Add(-window)
	items, total, err := s.repo.History(ctx, nodeID, since, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.OrchestratorSnapshot{}
	}
	return &HistoryPageResult{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *OrchestratorService) buildSummaryFromDB(ctx context.Context) (*FleetSummary, error) {
	snapshots, err := s.repo.LatestSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	summary := &FleetSummary{
		Timestamp: time.Now().UTC(),
		Total:     len(snapshots),
		MinOnline: s.cfg.MinOnline,
		Nodes:     make([]NodeStatusView, 0, len(snapshots)),
	}
	for _, snapshot := range snapshots {
		view := NodeStatusView{
			NodeID:         snapshot.NodeID,
			IsOnline:       snapshot.IsOnline,
			State:          snapshot.State,
			ResponseTimeMs: snapshot.ResponseTimeMs,
		}
		if snapshot.Node != nil {
			view.Name = snapshot.Node.Name
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
	return summary, nil
}

// ensure the concrete cache satisfies the service interfaces
var (
	_ NodeCache      = (*cache.Service)(nil)
	_ StatusCache    = (*cache.Service)(nil)
	_ SyncFlagStore  = (*cache.Service)(nil)
	_ SyncFlagReader = (*cache.Service)(nil)
)
