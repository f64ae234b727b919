package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/models"
)

type missNodeCache struct{}

func (missNodeCache) Get(context.Context, string, interface{}) error {
	return errors.New("cache miss")
}

func (missNodeCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func newReadService(repo *fakeOrchRepo) *OrchestratorService {
	cfg := &config.OrchestratorConfig{MinOnline: 2}
	return NewOrchestratorService(repo, missNodeCache{}, cfg, time.Minute, testLogger())
}

func snapshotsOf(n int) []models.OrchestratorSnapshot {
	snapshots := make([]models.OrchestratorSnapshot, 0, n)
	for i := 0; i < n; i++ {
		snapshots = append(snapshots, models.OrchestratorSnapshot{ID: uint(i + 1), NodeID: 1})
	}
	return snapshots
}

func TestHistoryReturnsRequestedPageWithTotal(t *testing.T) {
	repo := &fakeOrchRepo{history: snapshotsOf(5)}
	service := newReadService(repo)

	page, err := service.History(context.Background(), 1, 24*time.Hour, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 2, page.Offset)
	require.Len(t, page.Items, 2)
	assert.Equal(t, uint(3), page.Items[0].ID)
	assert.Equal(t, 2, repo.historyLimit)
	assert.Equal(t, 2, repo.historyOffset)
}

func TestHistoryClampsPageArguments(t *testing.T) {
	repo := &fakeOrchRepo{history: snapshotsOf(3)}
	service := newReadService(repo)

	page, err := service.History(context.Background(), 1, 24*time.Hour, 0, -10)
	require.NoError(t, err)

	assert.Equal(t, defaultPageSize, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, defaultPageSize, repo.historyLimit)
	assert.Equal(t, 0, repo.historyOffset)
	assert.Len(t, page.Items, 3)
}

func TestHistoryPastEndIsEmptyNotNil(t *testing.T) {
	repo := &fakeOrchRepo{history: snapshotsOf(2)}
	service := newReadService(repo)

	page, err := service.History(context.Background(), 1, 24*time.Hour, 10, 50)
	require.NoError(t, err)

	assert.Equal(t, int64(2), page.Total)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
