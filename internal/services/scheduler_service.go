package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

// SchedulerService owns the background goroutines of the API server
// process: the fleet poller, the websocket hub and snapshot retention.
type SchedulerService struct {
	poller    *OrchestratorPollService
	hub       *StatusHub
	orchRepo  repository.OrchestratorRepository
	retention time.Duration
	logger    *logrus.Logger

	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSchedulerService wires the scheduler. A zero retention disables
// snapshot pruning.
func NewSchedulerService(
	poller *OrchestratorPollService,
	hub *StatusHub,
	orchRepo repository.OrchestratorRepository,
	retention time.Duration,
	logger *logrus.Logger,
) *SchedulerService {
	return &SchedulerService{
		poller:    poller,
		hub:       hub,
		orchRepo:  orchRepo,
		retention: retention,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the background goroutines.
func (s *SchedulerService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.stopChan)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poller.Run(ctx)
	}()

	if s.retention > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.pruneLoop(ctx)
		}()
	}

	s.logger.Info("⏰ Scheduler started")
}

// Stop shuts the goroutines down and waits for them.
func (s *SchedulerService) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.poller.Stop()
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("⏰ Scheduler stopped")
	})
}

// pruneLoop drops poll history past the retention window once a day.
func (s *SchedulerService) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.retention)
			deleted, err := s.orchRepo.PruneSnapshots(ctx, cutoff)
			if err != nil {
				s.logger.WithError(err).Error("snapshot pruning failed")
				continue
			}
			if deleted > 0 {
				s.logger.WithField("deleted", deleted).Info("🧹 Pruned old snapshots")
			}
		}
	}
}
