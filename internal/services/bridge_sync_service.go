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

// Sync engine states.
const (
	SyncStateUnsynced      = "UNSYNCED"
	SyncStateBootstrapping = "BOOTSTRAPPING"
	SyncStateSteady        = "STEADY"
)

// LedgerClient is the slice of the node RPC surface the sync engine
// needs.
type LedgerClient interface {
	GetWrapRequests(ctx context.Context, pageIndex, pageSize uint32) (*clients.WrapPage, error)
	GetUnwrapRequests(ctx context.Context, pageIndex, pageSize uint32) (*clients.UnwrapPage, error)
	WrapCount(ctx context.Context) (int64, error)
	UnwrapCount(ctx context.Context) (int64, error)
}

// SyncFlagStore publishes the "initial sync finished" flag the API
// servers gate on.
type SyncFlagStore interface {
	SetSyncComplete(ctx context.Context, complete bool) error
}

// SyncStatus is a snapshot of the engine for the sync-status endpoint.
type SyncStatus struct {
	State            string     `json:"state"`
	WrapCursor       uint64     `json:"wrap_cursor"`
	UnwrapCursor     uint64     `json:"unwrap_cursor"`
	WrapCount        int64      `json:"wrap_count"`
	UnwrapCount      int64      `json:"unwrap_count"`
	LastPassAt       *time.Time `json:"last_pass_at,omitempty"`
	LastPassDuration string     `json:"last_pass_duration,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
}

// BridgeSyncService mirrors the embedded bridge ledger into Postgres.
//
// It runs three kinds of passes, always in the same order within a
// tick: a one-time bootstrap when both local tables are empty, an
// incremental pass that walks pages newest-first and stops as soon as
// a page stops yielding new records, and a pending refresh that
// re-reads records whose mutable state may still change. A failed
// pass is abandoned and retried whole on the next tick.
type BridgeSyncService struct {
	client LedgerClient
	repo   repository.BridgeRepository
	flags  SyncFlagStore
	cfg    *config.BridgeConfig
	logger *logrus.Logger

	mu     sync.RWMutex
	status SyncStatus

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewBridgeSyncService wires the sync engine.
func NewBridgeSyncService(
	client LedgerClient,
	repo repository.BridgeRepository,
	flags SyncFlagStore,
	cfg *config.BridgeConfig,
	logger *logrus.Logger,
) *BridgeSyncService {
	return &BridgeSyncService{
		client:   client,
		repo:     repo,
		flags:    flags,
		cfg:      cfg,
		logger:   logger,
		status:   SyncStatus{State: SyncStateUnsynced},
		stopChan: make(chan struct{}),
	}
}

// Status returns a copy of the current engine status.
func (s *BridgeSyncService) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run performs the initial sync, raises the readiness flag, then ticks
// until the context is cancelled or Stop is called.
func (s *BridgeSyncService) Run(ctx context.Context) error {
	if err := s.initialSync(ctx); err != nil {
		return err
	}

	if err := s.flags.SetSyncComplete(ctx, true); err != nil {
		s.logger.WithError(err).Warn("failed to publish sync flag, readiness gate stays closed")
	}
	s.logger.Info("🌉 Initial bridge sync complete, entering steady state")

	interval := time.Duration(s.cfg.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopChan:
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (s *BridgeSyncService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// initialSync bootstraps only when BOTH local tables are empty. A
// partially mirrored database resumes through incremental passes
// instead, so a crashed bootstrap never double-walks the ledger.
func (s *BridgeSyncService) initialSync(ctx context.Context) error {
	wrapCount, err := s.repo.WrapCount(ctx)
	if err != nil {
		return err
	}
	unwrapCount, err := s.repo.UnwrapCount(ctx)
	if err != nil {
		return err
	}

	if wrapCount == 0 && unwrapCount == 0 {
		s.setState(SyncStateBootstrapping)
		s.logger.Info("🌉 Empty mirror, bootstrapping from ledger")
		if err := s.bootstrap(ctx); err != nil {
			s.setError(err)
			return err
		}
	} else {
		s.logger.WithFields(logrus.Fields{
			"wraps":   wrapCount,
			"unwraps": unwrapCount,
		}).Info("🌉 Existing mirror found, skipping bootstrap")
		if err := s.syncWraps(ctx); err != nil {
			s.setError(err)
			return err
		}
		if err := s.syncUnwraps(ctx); err != nil {
			s.setError(err)
			return err
		}
	}

	s.setState(SyncStateSteady)
	s.refreshCounts(ctx)
	return nil
}

// runTick executes one steady-state cycle. Pass failures are isolated:
// a broken wrap pass does not stop the unwrap pass, and every pass is
// retried from scratch next tick.
func (s *BridgeSyncService) runTick(ctx context.Context) {
	started := time.Now()

	passes := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"wrap_incremental", s.syncWraps},
		{"unwrap_incremental", s.syncUnwraps},
		{"wrap_pending", s.refreshPendingWraps},
		{"unwrap_pending", s.refreshPendingUnwraps},
	}

	var lastErr error
	for _, pass := range passes {
		passStart := time.Now()
		err := pass.fn(ctx)
		metrics.SyncPassDuration.WithLabelValues(pass.name).Observe(time.Since(passStart).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			lastErr = err
			metrics.SyncPassesTotal.WithLabelValues(pass.name, "error").Inc()
			s.logger.WithError(err).WithField("pass", pass.name).Error("sync pass failed")
			continue
		}
		metrics.SyncPassesTotal.WithLabelValues(pass.name, "ok").Inc()
	}

	s.refreshCounts(ctx)

	s.mu.Lock()
	now := time.Now()
	s.status.LastPassAt = &now
	s.status.LastPassDuration = time.Since(started).Round(time.Millisecond).String()
	if lastErr != nil {
		s.status.LastError = lastErr.Error()
	} else {
		s.status.LastError = ""
	}
	s.mu.Unlock()
}

// bootstrap mirrors the full ledger. The remote count is read once up
// front; records that land while paging are picked up by the first
// incremental pass.
func (s *BridgeSyncService) bootstrap(ctx context.Context) error {
	wrapTotal, err := s.client.WrapCount(ctx)
	if err != nil {
		return err
	}
	unwrapTotal, err := s.client.UnwrapCount(ctx)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"wraps":   wrapTotal,
		"unwraps": unwrapTotal,
	}).Info("🌉 Bootstrap targets")

	pageSize := uint32(s.cfg.BatchSize)

	var fetched int64
	for page := uint32(0); fetched < wrapTotal; page++ {
		result, err := s.client.GetWrapRequests(ctx, page, pageSize)
		if err != nil {
			return err
		}
		metrics.SyncPagesFetched.WithLabelValues("wrap").Inc()
		if len(result.List) == 0 {
			break
		}
		if _, err := s.repo.UpsertWraps(ctx, result.List); err != nil {
			return err
		}
		metrics.SyncRecordsUpserted.WithLabelValues("wrap").Add(float64(len(result.List)))
		fetched += int64(len(result.List))
	}

	fetched = 0
	for page := uint32(0); fetched < unwrapTotal; page++ {
		result, err := s.client.GetUnwrapRequests(ctx, page, pageSize)
		if err != nil {
			return err
		}
		metrics.SyncPagesFetched.WithLabelValues("unwrap").Inc()
		if len(result.List) == 0 {
			break
		}
		if _, err := s.repo.UpsertUnwraps(ctx, result.List); err != nil {
			return err
		}
		metrics.SyncRecordsUpserted.WithLabelValues("unwrap").Add(float64(len(result.List)))
		fetched += int64(len(result.List))
	}

	return nil
}

// caughtUp decides whether an incremental walk can stop after the
// current page. The node lists requests most recent first, so once a
// page contains any record at or below the cursor (freshCount <
// pageLen) everything deeper is already mirrored. A short page
// (pageLen < pageSize) means the node has no more records.
func caughtUp(freshCount, pageLen int, pageSize uint32) bool {
	return freshCount < pageLen || uint32(pageLen) < pageSize
}

// syncWraps walks wrap pages newest-first and mirrors records above
// the local cursor.
func (s *BridgeSyncService) syncWraps(ctx context.Context) error {
	cursor, err := s.repo.MaxWrapHeight(ctx)
	if err != nil {
		return err
	}
	pageSize := uint32(s.cfg.BatchSize)

	for page := uint32(0); ; page++ {
		result, err := s.client.GetWrapRequests(ctx, page, pageSize)
		if err != nil {
			return err
		}
		metrics.SyncPagesFetched.WithLabelValues("wrap").Inc()
		if len(result.List) == 0 {
			break
		}

		fresh := make([]models.WrapTokenRequest, 0, len(result.List))
		for _, wrap := range result.List {
			if wrap.CreationMomentumHeight > cursor {
				fresh = append(fresh, wrap)
			}
		}
		if len(fresh) > 0 {
			if _, err := s.repo.UpsertWraps(ctx, fresh); err != nil {
				return err
			}
			metrics.SyncRecordsUpserted.WithLabelValues("wrap").Add(float64(len(fresh)))
		}

		if caughtUp(len(fresh), len(result.List), pageSize) {
			break
		}
	}

	if height, err := s.repo.MaxWrapHeight(ctx); err == nil {
		metrics.SyncCursorHeight.WithLabelValues("wrap").Set(float64(height))
		s.mu.Lock()
		s.status.WrapCursor = height
		s.mu.Unlock()
	}
	return nil
}

// syncUnwraps is the unwrap twin of syncWraps, cursoring on the
// registration momentum height.
func (s *BridgeSyncService) syncUnwraps(ctx context.Context) error {
	cursor, err := s.repo.MaxUnwrapHeight(ctx)
	if err != nil {
		return err
	}
	pageSize := uint32(s.cfg.BatchSize)

	for page := uint32(0); ; page++ {
		result, err := s.client.GetUnwrapRequests(ctx, page, pageSize)
		if err != nil {
			return err
		}
		metrics.SyncPagesFetched.WithLabelValues("unwrap").Inc()
		if len(result.List) == 0 {
			break
		}

		fresh := make([]models.UnwrapTokenRequest, 0, len(result.List))
		for _, unwrap := range result.List {
			if unwrap.RegistrationMomentumHeight > cursor {
				fresh = append(fresh, unwrap)
			}
		}
		if len(fresh) > 0 {
			if _, err := s.repo.UpsertUnwraps(ctx, fresh); err != nil {
				return err
			}
			metrics.SyncRecordsUpserted.WithLabelValues("unwrap").Add(float64(len(fresh)))
		}

		if caughtUp(len(fresh), len(result.List), pageSize) {
			break
		}
	}

	if height, err := s.repo.MaxUnwrapHeight(ctx); err == nil {
		metrics.SyncCursorHeight.WithLabelValues("unwrap").Set(float64(height))
		s.mu.Lock()
		s.status.UnwrapCursor = height
		s.mu.Unlock()
	}
	return nil
}

// refreshPendingWraps re-reads every wrap still counting down to
// finality. Pages are walked from the top until the whole pending set
// has been seen or the page ceiling is hit; recent records cluster in
// the first pages, so the walk is normally short.
func (s *BridgeSyncService) refreshPendingWraps(ctx context.Context) error {
	ids, err := s.repo.PendingWrapIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	remaining := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remaining[id] = struct{}{}
	}
	pageSize := uint32(s.cfg.BatchSize)
	maxPages := uint32(s.cfg.MaxPendingPages)

	for page := uint32(0); ; page++ {
		if page >= maxPages {
			metrics.PendingRefreshCeilingHits.Inc()
			s.logger.WithFields(logrus.Fields{
				"uncovered": len(remaining),
				"max_pages": maxPages,
			}).Warn("pending wrap refresh hit page ceiling, leftover entries refresh next tick")
			break
		}

		result, err := s.client.GetWrapRequests(ctx, page, pageSize)
		if err != nil {
			return err
		}
		metrics.SyncPagesFetched.WithLabelValues("wrap").Inc()
		if len(result.List) == 0 {
			break
		}

		matched := make([]models.WrapTokenRequest, 0, len(result.List))
		for _, wrap := range result.List {
			if _, ok := remaining[wrap.RequestID]; ok {
				matched = append(matched, wrap)
				delete(remaining, wrap.RequestID)
			}
		}
		if len(matched) > 0 {
			if _, err := s.repo.UpsertWraps(ctx, matched); err != nil {
				return err
			}
			metrics.SyncRecordsUpserted.WithLabelValues("wrap").Add(float64(len(matched)))
		}

		if len(remaining) == 0 || uint32(len(result.List)) < pageSize {
			break
		}
	}
	return nil
}

// refreshPendingUnwraps mirrors refreshPendingWraps over the unwrap
// natural keys.
func (s *BridgeSyncService) refreshPendingUnwraps(ctx context.Context) error {
	keys, err := s.repo.PendingUnwrapKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	remaining := make(map[models.UnwrapKey]struct{}, len(keys))
	for _, key := range keys {
		remaining[key] = struct{}{}
	}
	pageSize := uint32(s.cfg.BatchSize)
	maxPages := uint32(s.cfg.MaxPendingPages)

	for page := uint32(0); ; page++ {
		if page >= maxPages {
			metrics.PendingRefreshCeilingHits.Inc()
			s.logger.WithFields(logrus.Fields{
				"uncovered": len(remaining),
				"max_pages": maxPages,
			}).Warn("pending unwrap refresh hit page ceiling, leftover entries refresh next tick")
			break
		}

		result, err := s.client.GetUnwrapRequests(ctx, page, pageSize)
		if err != nil {
			return err
		}
		metrics.SyncPagesFetched.WithLabelValues("unwrap").Inc()
		if len(result.List) == 0 {
			break
		}

		matched := make([]models.UnwrapTokenRequest, 0, len(result.List))
		for _, unwrap := range result.List {
			if _, ok := remaining[unwrap.Key()]; ok {
				matched = append(matched, unwrap)
				delete(remaining, unwrap.Key())
			}
		}
		if len(matched) > 0 {
			if _, err := s.repo.UpsertUnwraps(ctx, matched); err != nil {
				return err
			}
			metrics.SyncRecordsUpserted.WithLabelValues("unwrap").Add(float64(len(matched)))
		}

		if len(remaining) == 0 || uint32(len(result.List)) < pageSize {
			break
		}
	}
	return nil
}

func (s *BridgeSyncService) setState(state string) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

func (s *BridgeSyncService) setError(err error) {
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
}

func (s *BridgeSyncService) refreshCounts(ctx context.Context) {
	wrapCount, err := s.repo.WrapCount(ctx)
	if err != nil {
		return
	}
	unwrapCount, err := s.repo.UnwrapCount(ctx)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.status.WrapCount = wrapCount
	s.status.UnwrapCount = unwrapCount
	s.mu.Unlock()
}
