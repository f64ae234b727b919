package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hypercore-one/bridge-monitor/internal/models"
)

// NodeUptime is uptime over an observation window for one node.
type NodeUptime struct {
	NodeID        uint    `json:"node_id"`
	Name          string  `json:"name"`
	Total         int64   `json:"total_snapshots"`
	Online        int64   `json:"online_snapshots"`
	UptimePercent float64 `json:"uptime_percent"`
}

// FleetBucket is fleet-wide health inside one time bucket.
type FleetBucket struct {
	Bucket time.Time `json:"bucket"`
	Online int64     `json:"online"`
	Total  int64     `json:"total"`
}

// OrchestratorRepository persists the node fleet and its poll snapshots.
type OrchestratorRepository interface {
	ListNodes(ctx context.Context, activeOnly bool) ([]models.OrchestratorNode, error)
	GetNode(ctx context.Context, id uint) (*models.OrchestratorNode, error)
	UpsertNode(ctx context.Context, node *models.OrchestratorNode) error
	SetNodeActive(ctx context.Context, id uint, active bool) error

	SaveRound(ctx context.Context, snapshots []models.OrchestratorSnapshot) error
	LatestSnapshots(ctx context.Context) ([]models.OrchestratorSnapshot, error)
	History(ctx context.Context, nodeID uint, since time.Time, limit, offset int) ([]models.OrchestratorSnapshot, int64, error)

	UptimeSince(ctx context.Context, since time.Time) ([]NodeUptime, error)
	FleetActivity(ctx context.Context, since time.Time, bucket time.Duration) ([]FleetBucket, error)
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

type orchestratorRepository struct {
	db *gorm.DB
}

// NewOrchestratorRepository creates a gorm-backed orchestrator repository.
func NewOrchestratorRepository(db *gorm.DB) OrchestratorRepository {
	return &orchestratorRepository{db: db}
}

func (r *orchestratorRepository) ListNodes(ctx context.Context, activeOnly bool) ([]models.OrchestratorNode, error) {
	query := r.db.WithContext(ctx).Order("name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var nodes []models.OrchestratorNode
	err := query.Find(&nodes).Error
	return nodes, err
}

func (r *orchestratorRepository) GetNode(ctx context.Context, id uint) (*models.OrchestratorNode, error) {
	var node models.OrchestratorNode
	if err := r.db.WithContext(ctx).First(&node, id).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

// UpsertNode inserts or updates a node keyed by name. Used by the seed
// tool, so re-running it refreshes addresses without duplicating rows.
func (r *orchestratorRepository) UpsertNode(ctx context.Context, node *models.OrchestratorNode) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"ip_address", "pubkey", "rpc_port", "is_active", "updated_at"}),
	}).Create(node).Error
}

func (r *orchestratorRepository) SetNodeActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.OrchestratorNode{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveRound writes one poll round atomically. Child network stats
// rows are created through the association.
func (r *orchestratorRepository) SaveRound(ctx context.Context, snapshots []models.OrchestratorSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&snapshots).Error
	})
}

// LatestSnapshots returns the newest snapshot per node, with node and
// network stats loaded.
func (r *orchestratorRepository) LatestSnapshots(ctx context.Context) ([]models.OrchestratorSnapshot, error) {
	var snapshots []models.OrchestratorSnapshot
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (node_id) * FROM orchestrator_snapshots ORDER BY node_id, timestamp DESC`).
		Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return snapshots, nil
	}

	ids := make([]uint, 0, len(snapshots))
	nodeIDs := make([]uint, 0, len(snapshots))
	for _, s := range snapshots {
		ids = append(ids, s.ID)
		nodeIDs = append(nodeIDs, s.NodeID)
	}

	var stats []models.NetworkStats
	if err := r.db.WithContext(ctx).Where("snapshot_id IN ?", ids).Find(&stats).Error; err != nil {
		return nil, err
	}
	statsBySnapshot := make(map[uint][]models.NetworkStats, len(snapshots))
	for _, s := range stats {
		statsBySnapshot[s.SnapshotID] = append(statsBySnapshot[s.SnapshotID], s)
	}

	var nodes []models.OrchestratorNode
	if err := r.db.WithContext(ctx).Where("id IN ?", nodeIDs).Find(&nodes).Error; err != nil {
		return nil, err
	}
	nodeByID := make(map[uint]models.OrchestratorNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	for i := range snapshots {
		snapshots[i].NetworkStats = statsBySnapshot[snapshots[i].ID]
		if node, ok := nodeByID[snapshots[i].NodeID]; ok {
			snapshots[i].Node = &node
		}
	}
	return snapshots, nil
}

func (r *orchestratorRepository) History(ctx context.Context, nodeID uint, since time.Time, limit, offset int) ([]models.OrchestratorSnapshot, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrchestratorSnapshot{}).
		Where("node_id = ? AND timestamp >= ?", nodeID, since).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var snapshots []models.OrchestratorSnapshot
	err := r.db.WithContext(ctx).
		Preload("NetworkStats").
		Where("node_id = ? AND timestamp >= ?", nodeID, since).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&snapshots).Error
	return snapshots, total, err
}

func (r *orchestratorRepository) UptimeSince(ctx context.Context, since time.Time) ([]NodeUptime, error) {
	var uptimes []NodeUptime
	err := r.db.WithContext(ctx).
		Table("orchestrator_snapshots AS s").
		Select(`s.node_id,
			n.name,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE s.is_online) AS online,
			ROUND(100.0 * COUNT(*) FILTER (WHERE s.is_online) / COUNT(*), 2) AS uptime_percent`).
		Joins("JOIN orchestrator_nodes n ON n.id = s.node_id").
		Where("s.timestamp >= ?", since).
		Group("s.node_id, n.name").
		Order("n.name").
		Scan(&uptimes).Error
	return uptimes, err
}

// FleetActivity buckets poll snapshots into fixed-width windows and
// counts online versus total observations in each.
func (r *orchestratorRepository) FleetActivity(ctx context.Context, since time.Time, bucket time.Duration) ([]FleetBucket, error) {
	seconds := int64(bucket.Seconds())
	var buckets []FleetBucket
	err := r.db.WithContext(ctx).
		Table("orchestrator_snapshots").
		Select(`to_timestamp(floor(extract(epoch FROM timestamp) / ?) * ?) AS bucket,
			COUNT(*) FILTER (WHERE is_online) AS online,
			COUNT(*) AS total`, seconds, seconds).
		Where("timestamp >= ?", since).
		Group("bucket").
		Order("bucket").
		Scan(&buckets).Error
	return buckets, err
}

// PruneSnapshots deletes snapshot rows older than the cutoff. Network
// stats rows go with them through the cascade.
func (r *orchestratorRepository) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.OrchestratorSnapshot{})
	return result.RowsAffected, result.Error
}
