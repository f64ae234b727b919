package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypercore-one/bridge-monitor/internal/clients"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
)

type fakeOrchestratorClient struct {
	mu      sync.Mutex
	down    map[string]error
	state   int
	inCalls int
}

func (f *fakeOrchestratorClient) GetIdentity(_ context.Context, endpoint string) (*clients.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inCalls++
	if err, ok := f.down[endpoint]; ok {
		return nil, err
	}
	return &clients.Identity{
		PillarName:      "pillar-" + endpoint,
		ProducerAddress: "z1q-" + endpoint,
		Raw:             []byte(`{}`),
	}, nil
}

func (f *fakeOrchestratorClient) GetStatus(_ context.Context, endpoint string) (*clients.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.down[endpoint]; ok {
		return nil, err
	}
	return &clients.Status{
		State:     f.state,
		StateName: clients.StateName(f.state),
		Online:    clients.IsOnlineState(f.state),
		Networks: map[string]clients.NetworkCounts{
			"bnb": {WrapsToSign: 1},
		},
		Raw: []byte(`{}`),
	}, nil
}

type fakeOrchRepo struct {
	mu            sync.Mutex
	nodes         []models.OrchestratorNode
	rounds        [][]models.OrchestratorSnapshot
	history       []models.OrchestratorSnapshot
	historyLimit  int
	historyOffset int
}

func (r *fakeOrchRepo) ListNodes(_ context.Context, activeOnly bool) ([]models.OrchestratorNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !activeOnly {
		return r.nodes, nil
	}
	var active []models.OrchestratorNode
	for _, node := range r.nodes {
		if node.IsActive {
			active = append(active, node)
		}
	}
	return active, nil
}

func (r *fakeOrchRepo) GetNode(context.Context, uint) (*models.OrchestratorNode, error) {
	return nil, nil
}

func (r *fakeOrchRepo) UpsertNode(context.Context, *models.OrchestratorNode) error { return nil }

func (r *fakeOrchRepo) SetNodeActive(context.Context, uint, bool) error { return nil }

func (r *fakeOrchRepo) SaveRound(_ context.Context, snapshots []models.OrchestratorSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, snapshots)
	return nil
}

func (r *fakeOrchRepo) LatestSnapshots(context.Context) ([]models.OrchestratorSnapshot, error) {
	return nil, nil
}

func (r *fakeOrchRepo) History(_ context.Context, _ uint, _ time.Time, limit, offset int) ([]models.OrchestratorSnapshot, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyLimit = limit
	r.historyOffset = offset
	items := r.history
	if offset >= len(items) {
		items = nil
	} else {
		items = items[offset:]
		if len(items) > limit {
			items = items[:limit]
		}
	}
	return items, int64(len(r.history)), nil
}

func (r *fakeOrchRepo) UptimeSince(context.Context, time.Time) ([]repository.NodeUptime, error) {
	return nil, nil
}

func (r *fakeOrchRepo) FleetActivity(context.Context, time.Time, time.Duration) ([]repository.FleetBucket, error) {
	return nil, nil
}

func (r *fakeOrchRepo) PruneSnapshots(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeStatusCache struct {
	mu       sync.Mutex
	sets     map[string]interface{}
	patterns []string
}

func (c *fakeStatusCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = make(map[string]interface{})
	}
	c.sets[key] = value
	return nil
}

func (c *fakeStatusCache) DeletePattern(_ context.Context, pattern string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	return 0, nil
}

type fakeHub struct {
	mu        sync.Mutex
	summaries []*FleetSummary
}

func (h *fakeHub) BroadcastStatus(summary *FleetSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.summaries = append(h.summaries, summary)
}

func fleetOf(n int) []models.OrchestratorNode {
	nodes := make([]models.OrchestratorNode, 0, n)
	for i := 0; i < n; i++ {
		nodes = append(nodes, models.OrchestratorNode{
			ID:        uint(i + 1),
			Name:      fmt.Sprintf("node-%d", i+1),
			IPAddress: fmt.Sprintf("10.0.0.%d", i+1),
			RPCPort:   55000,
			IsActive:  true,
		})
	}
	return nodes
}

func newPollService(client OrchestratorClient, repo repository.OrchestratorRepository, cache StatusCache, hub StatusBroadcaster) *OrchestratorPollService {
	cfg := &config.OrchestratorConfig{
		PollInterval:   60,
		RPCTimeout:     5,
		MinOnline:      4,
		MaxConcurrency: 5,
		InterCallDelay: 1,
	}
	return NewOrchestratorPollService(client, repo, cache, hub, cfg, 10*time.Second, testLogger())
}

func TestPollRoundIsolatesNodeFailure(t *testing.T) {
	client := &fakeOrchestratorClient{
		state: clients.StateLive,
		down:  map[string]error{"http://10.0.0.3:55000": errors.New("connection refused")},
	}
	repo := &fakeOrchRepo{nodes: fleetOf(5)}
	cache := &fakeStatusCache{}
	hub := &fakeHub{}
	svc := newPollService(client, repo, cache, hub)

	svc.pollRound(context.Background())

	require.Len(t, repo.rounds, 1)
	round := repo.rounds[0]
	require.Len(t, round, 5)

	var offline []models.OrchestratorSnapshot
	for _, snapshot := range round {
		if !snapshot.IsOnline {
			offline = append(offline, snapshot)
		}
	}
	require.Len(t, offline, 1)
	assert.Equal(t, uint(3), offline[0].NodeID)
	require.NotNil(t, offline[0].ErrorMessage)
	assert.Contains(t, *offline[0].ErrorMessage, "connection refused")

	// The failed node still records an observed zero for every network.
	require.Len(t, offline[0].NetworkStats, 3)
	for _, stats := range offline[0].NetworkStats {
		assert.Zero(t, stats.WrapsCount)
		assert.Zero(t, stats.UnwrapsCount)
	}
	networks := make([]string, 0, 3)
	for _, stats := range offline[0].NetworkStats {
		networks = append(networks, stats.Network)
	}
	assert.ElementsMatch(t, []string{"bnb", "eth", "supernova"}, networks)

	require.Len(t, hub.summaries, 1)
	summary := hub.summaries[0]
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.Online)
	assert.Equal(t, 1, summary.Offline)
	assert.True(t, summary.BridgeHealthy)
}

func TestPollRoundSummaryAndCache(t *testing.T) {
	client := &fakeOrchestratorClient{state: clients.StateLive}
	repo := &fakeOrchRepo{nodes: fleetOf(3)}
	cache := &fakeStatusCache{}
	hub := &fakeHub{}
	svc := newPollService(client, repo, cache, hub)

	svc.pollRound(context.Background())

	assert.Contains(t, cache.sets, "status:summary")
	assert.Contains(t, cache.patterns, "stats:*")

	summary := cache.sets["status:summary"].(*FleetSummary)
	assert.Equal(t, 3, summary.Online)
	// 3 online out of a 4-node quorum floor.
	assert.False(t, summary.BridgeHealthy)

	for _, view := range summary.Nodes {
		assert.Equal(t, "LiveState", view.StateName)
		require.NotNil(t, view.ResponseTimeMs)
		assert.Equal(t, clients.NetworkCounts{WrapsToSign: 1}, view.Networks["bnb"])
	}

	// Networks the node did not report are still present at zero.
	require.Len(t, repo.rounds, 1)
	for _, snapshot := range repo.rounds[0] {
		require.Len(t, snapshot.NetworkStats, 3)
	}
}

func TestPollRoundHaltedNodesCountOffline(t *testing.T) {
	client := &fakeOrchestratorClient{state: clients.StateHalted}
	repo := &fakeOrchRepo{nodes: fleetOf(2)}
	svc := newPollService(client, repo, &fakeStatusCache{}, &fakeHub{})

	svc.pollRound(context.Background())

	require.Len(t, repo.rounds, 1)
	for _, snapshot := range repo.rounds[0] {
		assert.False(t, snapshot.IsOnline)
		require.NotNil(t, snapshot.StateName)
		assert.Equal(t, "HaltedState", *snapshot.StateName)
		assert.Nil(t, snapshot.ErrorMessage)
	}
}

func TestPollRoundSkipsWhenNoActiveNodes(t *testing.T) {
	client := &fakeOrchestratorClient{state: clients.StateLive}
	repo := &fakeOrchRepo{nodes: []models.OrchestratorNode{{ID: 1, Name: "parked", IsActive: false}}}
	svc := newPollService(client, repo, &fakeStatusCache{}, &fakeHub{})

	svc.pollRound(context.Background())

	assert.Empty(t, repo.rounds)
	assert.Zero(t, client.inCalls)
}
