package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hypercore-one/bridge-monitor/internal/models"
)

// WrapFilter narrows wrap request queries. Zero values and nil
// pointers mean "any".
type WrapFilter struct {
	ChainID       int
	NetworkClass  int
	TokenStandard string
	TokenSymbol   string
	ToAddress     string
	Confirmations *int
	PendingOnly   bool
	Limit         int
	Offset        int
}

// UnwrapFilter narrows unwrap request queries.
type UnwrapFilter struct {
	ChainID       int
	NetworkClass  int
	TokenStandard string
	TokenSymbol   string
	ToAddress     string
	Redeemed      *bool
	Revoked       *bool
	PendingOnly   bool
	Limit         int
	Offset        int
}

// TokenVolume aggregates request counts per chain and token.
type TokenVolume struct {
	ChainID      int    `json:"chain_id"`
	TokenSymbol  string `json:"token_symbol"`
	Count        int64  `json:"count"`
	PendingCount int64  `json:"pending_count"`
}

// BucketCount is one fixed-width time bucket of request activity.
type BucketCount struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
}

// BridgeRepository persists mirrored wrap and unwrap token requests.
type BridgeRepository interface {
	UpsertWraps(ctx context.Context, wraps []models.WrapTokenRequest) (int64, error)
	UpsertUnwraps(ctx context.Context, unwraps []models.UnwrapTokenRequest) (int64, error)

	WrapCount(ctx context.Context) (int64, error)
	UnwrapCount(ctx context.Context) (int64, error)

	MaxWrapHeight(ctx context.Context) (uint64, error)
	MaxUnwrapHeight(ctx context.Context) (uint64, error)

	PendingWrapIDs(ctx context.Context) ([]string, error)
	PendingUnwrapKeys(ctx context.Context) ([]models.UnwrapKey, error)

	QueryWraps(ctx context.Context, filter WrapFilter) ([]models.WrapTokenRequest, int64, error)
	QueryUnwraps(ctx context.Context, filter UnwrapFilter) ([]models.UnwrapTokenRequest, int64, error)

	WrapVolumes(ctx context.Context) ([]TokenVolume, error)
	UnwrapVolumes(ctx context.Context) ([]TokenVolume, error)
	WrapActivity(ctx context.Context, since time.Time, bucket time.Duration) ([]BucketCount, error)
	UnwrapActivity(ctx context.Context, since time.Time, bucket time.Duration) ([]BucketCount, error)
}

type bridgeRepository struct {
	db *gorm.DB
}

// NewBridgeRepository creates a gorm-backed bridge repository.
func NewBridgeRepository(db *gorm.DB) BridgeRepository {
	return &bridgeRepository{db: db}
}

// UpsertWraps writes a batch inside one transaction. On a request_id
// conflict only the confirmation countdown is overwritten; everything
// else on a wrap is immutable once mirrored.
func (r *bridgeRepository) UpsertWraps(ctx context.Context, wraps []models.WrapTokenRequest) (int64, error) {
	if len(wraps) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"confirmations_to_finality"}),
	}).Create(&wraps)
	return result.RowsAffected, result.Error
}

// UpsertUnwraps writes a batch inside one transaction. The conflict
// target is the natural key (transaction_hash, log_index) and only the
// redemption lifecycle columns are overwritten.
func (r *bridgeRepository) UpsertUnwraps(ctx context.Context, unwraps []models.UnwrapTokenRequest) (int64, error) {
	if len(unwraps) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_hash"}, {Name: "log_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"redeemed", "revoked", "redeemable_in"}),
	}).Create(&unwraps)
	return result.RowsAffected, result.Error
}

func (r *bridgeRepository) WrapCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WrapTokenRequest{}).Count(&count).Error
	return count, err
}

func (r *bridgeRepository) UnwrapCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UnwrapTokenRequest{}).Count(&count).Error
	return count, err
}

// MaxWrapHeight returns the highest mirrored creation momentum height,
// zero when the table is empty.
func (r *bridgeRepository) MaxWrapHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := r.db.WithContext(ctx).Model(&models.WrapTokenRequest{}).
		Select("COALESCE(MAX(creation_momentum_height), 0)").
		Scan(&height).Error
	return height, err
}

func (r *bridgeRepository) MaxUnwrapHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := r.db.WithContext(ctx).Model(&models.UnwrapTokenRequest{}).
		Select("COALESCE(MAX(registration_momentum_height), 0)").
		Scan(&height).Error
	return height, err
}

// PendingWrapIDs lists request ids still counting down to finality.
func (r *bridgeRepository) PendingWrapIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.WrapTokenRequest{}).
		Where("confirmations_to_finality > 0").
		Pluck("request_id", &ids).Error
	return ids, err
}

// PendingUnwrapKeys lists natural keys of unwraps that are neither
// redeemed nor revoked.
func (r *bridgeRepository) PendingUnwrapKeys(ctx context.Context) ([]models.UnwrapKey, error) {
	var keys []models.UnwrapKey
	err := r.db.WithContext(ctx).Model(&models.UnwrapTokenRequest{}).
		Where("redeemed = ? AND revoked = ?", false, false).
		Select("transaction_hash", "log_index").
		Scan(&keys).Error
	return keys, err
}

func (r *bridgeRepository) QueryWraps(ctx context.Context, filter WrapFilter) ([]models.WrapTokenRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.WrapTokenRequest{})
	if filter.ChainID != 0 {
		query = query.Where("chain_id = ?", filter.ChainID)
	}
	if filter.NetworkClass != 0 {
		query = query.Where("network_class = ?", filter.NetworkClass)
	}
	if filter.TokenStandard != "" {
		query = query.Where("token_standard = ?", filter.TokenStandard)
	}
	if filter.TokenSymbol != "" {
		query = query.Where("token_symbol = ?", filter.TokenSymbol)
	}
	if filter.ToAddress != "" {
		query = query.Where("to_address = ?", filter.ToAddress)
	}
	if filter.Confirmations != nil {
		query = query.Where("confirmations_to_finality = ?", *filter.Confirmations)
	}
	if filter.PendingOnly {
		query = query.Where("confirmations_to_finality > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var wraps []models.WrapTokenRequest
	err := query.Order("creation_momentum_height DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&wraps).Error
	return wraps, total, err
}

func (r *bridgeRepository) QueryUnwraps(ctx context.Context, filter UnwrapFilter) ([]models.UnwrapTokenRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.UnwrapTokenRequest{})
	if filter.ChainID != 0 {
		query = query.Where("chain_id = ?", filter.ChainID)
	}
	if filter.NetworkClass != 0 {
		query = query.Where("network_class = ?", filter.NetworkClass)
	}
	if filter.TokenStandard != "" {
		query = query.Where("token_standard = ?", filter.TokenStandard)
	}
	if filter.TokenSymbol != "" {
		query = query.Where("token_symbol = ?", filter.TokenSymbol)
	}
	if filter.ToAddress != "" {
		query = query.Where("to_address = ?", filter.ToAddress)
	}
	if filter.Redeemed != nil {
		query = query.Where("redeemed = ?", *filter.Redeemed)
	}
	if filter.Revoked != nil {
		query = query.Where("revoked = ?", *filter.Revoked)
	}
	if filter.PendingOnly {
		query = query.Where("redeemed = ? AND revoked = ?", false, false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var unwraps []models.UnwrapTokenRequest
	err := query.Order("registration_momentum_height DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&unwraps).Error
	return unwraps, total, err
}

func (r *bridgeRepository) WrapVolumes(ctx context.Context) ([]TokenVolume, error) {
	var volumes []TokenVolume
	err := r.db.WithContext(ctx).Model(&models.WrapTokenRequest{}).
		Select("chain_id, token_symbol, COUNT(*) AS count, COUNT(*) FILTER (WHERE confirmations_to_finality > 0) AS pending_count").
		Group("chain_id, token_symbol").
		Order("chain_id, token_symbol").
		Scan(&volumes).Error
	return volumes, err
}

func (r *bridgeRepository) UnwrapVolumes(ctx context.Context) ([]TokenVolume, error) {
	var volumes []TokenVolume
	err := r.db.WithContext(ctx).Model(&models.UnwrapTokenRequest{}).
		Select("chain_id, token_symbol, COUNT(*) AS count, COUNT(*) FILTER (WHERE NOT redeemed AND NOT revoked) AS pending_count").
		Group("chain_id, token_symbol").
		Order("chain_id, token_symbol").
		Scan(&volumes).Error
	return volumes, err
}

// WrapActivity buckets wrap creation timestamps into fixed-width
// windows since the given time.
func (r *bridgeRepository) WrapActivity(ctx context.Context, since time.Time, bucket time.Duration) ([]BucketCount, error) {
	return r.activity(ctx, "wrap_token_requests", since, bucket)
}

func (r *bridgeRepository) UnwrapActivity(ctx context.Context, since time.Time, bucket time.Duration) ([]BucketCount, error) {
	return r.activity(ctx, "unwrap_token_requests", since, bucket)
}

func (r *bridgeRepository) activity(ctx context.Context, table string, since time.Time, bucket time.Duration) ([]BucketCount, error) {
	seconds := int64(bucket.Seconds())
	var counts []BucketCount
	err := r.db.WithContext(ctx).Table(table).
		Select("to_timestamp(floor(extract(epoch FROM created_at) / ?) * ?) AS bucket, COUNT(*) AS count", seconds, seconds).
		Where("created_at >= ?", since).
		Group("bucket").
		Order("bucket").
		Scan(&counts).Error
	return counts, err
}
