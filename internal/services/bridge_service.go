package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

// SyncFlagReader reads the readiness flag the bridge worker publishes.
type SyncFlagReader interface {
	IsSyncComplete(ctx context.Context) bool
}

// WrapPageResult is a paginated wrap listing.
type WrapPageResult struct {
	Items  []models.WrapTokenRequest `json:"items"`
	Total  int64                     `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// UnwrapPageResult is a paginated unwrap listing.
type UnwrapPageResult struct {
	Items  []models.UnwrapTokenRequest `json:"items"`
	Total  int64                       `json:"total"`
	Limit  int                         `json:"limit"`
	Offset int                         `json:"offset"`
}

// MirrorStatus is the API view of the worker's progress, rebuilt from
// the database and the readiness flag since the worker runs in its own
// process.
type MirrorStatus struct {
	SyncComplete bool   `json:"sync_complete"`
	WrapCount    int64  `json:"wrap_count"`
	UnwrapCount  int64  `json:"unwrap_count"`
	WrapCursor   uint64 `json:"wrap_cursor"`
	UnwrapCursor uint64 `json:"unwrap_cursor"`
}

// BridgeService serves mirrored bridge data to the API layer. Listing
// queries hit the database directly: filter combinations are too
// varied to cache usefully.
type BridgeService struct {
	repo   repository.BridgeRepository
	flags  SyncFlagReader
	logger *logrus.Logger
}

// NewBridgeService wires the read service.
func NewBridgeService(repo repository.BridgeRepository, flags SyncFlagReader, logger *logrus.Logger) *BridgeService {
	return &BridgeService{repo: repo, flags: flags, logger: logger}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListWraps returns wraps matching the filter, newest first.
func (s *BridgeService) ListWraps(ctx context.Context, filter repository.WrapFilter) (*WrapPageResult, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	items, total, err := s.repo.QueryWraps(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.WrapTokenRequest{}
	}
	return &WrapPageResult{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ListUnwraps returns unwraps matching the filter, newest first.
func (s *BridgeService) ListUnwraps(ctx context.Context, filter repository.UnwrapFilter) (*UnwrapPageResult, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	items, total, err := s.repo.QueryUnwraps(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.UnwrapTokenRequest{}
	}
	return &UnwrapPageResult{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// SyncStatus reports mirror progress.
func (s *BridgeService) SyncStatus(ctx context.Context) (*MirrorStatus, error) {
	wrapCount, err := s.repo.WrapCount(ctx)
	if err != nil {
		return nil, err
	}
	unwrapCount, err := s.repo.UnwrapCount(ctx)
	if err != nil {
		return nil, err
	}
	wrapCursor, err := s.repo.MaxWrapHeight(ctx)
	if err != nil {
		return nil, err
	}
	unwrapCursor, err := s.repo.MaxUnwrapHeight(ctx)
	if err != nil {
		return nil, err
	}
	return &MirrorStatus{
		SyncComplete: s.flags.IsSyncComplete(ctx),
		WrapCount:    wrapCount,
		UnwrapCount:  unwrapCount,
		WrapCursor:   wrapCursor,
		UnwrapCursor: unwrapCursor,
	}, nil
}
