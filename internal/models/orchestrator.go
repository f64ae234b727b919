package models

import (
	"encoding/json"
	"time"
)

// OrchestratorNode is one member of the distributed signer cluster.
// Operator-seeded configuration; only IsActive is expected to change.
type OrchestratorNode struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	IPAddress string    `json:"ip_address" gorm:"type:varchar(45);not null"`
	Pubkey    string    `json:"pubkey,omitempty" gorm:"type:varchar(100)"`
	RPCPort   int       `json:"rpc_port" gorm:"not null;default:55000"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Snapshots []OrchestratorSnapshot `json:"-" gorm:"foreignKey:NodeID"`
}

// TableName overrides the table name
func (OrchestratorNode) TableName() string {
	return "orchestrator_nodes"
}

// OrchestratorSnapshot is a point-in-time poll result for one node.
// Append-only history: rows are never updated, only superseded.
type OrchestratorSnapshot struct {
	ID              uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	NodeID          uint            `json:"node_id" gorm:"not null;index"`
	Timestamp       time.Time       `json:"timestamp" gorm:"not null;index"`
	PillarName      *string         `json:"pillar_name" gorm:"type:varchar(100)"`
	ProducerAddress *string         `json:"producer_address" gorm:"type:varchar(100)"`
	State           *int            `json:"state"`
	StateName       *string         `json:"state_name" gorm:"type:varchar(50)"`
	IsOnline        bool            `json:"is_online" gorm:"not null;default:false"`
	ResponseTimeMs  *int            `json:"response_time_ms"`
	ErrorMessage    *string         `json:"error_message" gorm:"type:text"`
	RawIdentity     json.RawMessage `json:"raw_identity,omitempty" gorm:"type:jsonb"`
	RawStatus       json.RawMessage `json:"raw_status,omitempty" gorm:"type:jsonb"`

	Node         *OrchestratorNode `json:"node,omitempty" gorm:"foreignKey:NodeID"`
	NetworkStats []NetworkStats    `json:"network_stats" gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (OrchestratorSnapshot) TableName() string {
	return "orchestrator_snapshots"
}

// NetworkStats is the per-sub-network signing queue depth observed in one
// snapshot ('bnb', 'eth', 'supernova').
type NetworkStats struct {
	ID           uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	SnapshotID   uint   `json:"-" gorm:"not null;index"`
	Network      string `json:"network" gorm:"type:varchar(20);not null"`
	WrapsCount   int    `json:"wraps_count" gorm:"not null;default:0"`
	UnwrapsCount int    `json:"unwraps_count" gorm:"not null;default:0"`
}

// TableName overrides the table name
func (NetworkStats) TableName() string {
	return "network_stats"
}
