package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/auth"
	"github.com/hypercore-one/bridge-monitor/internal/cache"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/handlers"
	"github.com/hypercore-one/bridge-monitor/internal/middleware"
	"github.com/hypercore-one/bridge-monitor/internal/models"
	"github.com/hypercore-one/bridge-monitor/internal/repository"
	"github.com/hypercore-one/bridge-monitor/internal/services"
)

type stubUserRepo struct {
	users map[uuid.UUID]*models.User
}

func (r *stubUserRepo) Create(context.Context, *models.User) error { return nil }

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) List(context.Context, int, int) ([]models.User, int64, error) {
	return nil, 0, nil
}

func (r *stubUserRepo) Update(context.Context, *models.User) error { return nil }

func (r *stubUserRepo) Delete(context.Context, uuid.UUID) error { return nil }

func (r *stubUserRepo) CreateToken(context.Context, *models.APIToken) error { return nil }

func (r *stubUserRepo) GetTokenByHash(context.Context, string) (*models.APIToken, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) ListTokens(context.Context, uuid.UUID) ([]models.APIToken, error) {
	return nil, nil
}

func (r *stubUserRepo) RevokeToken(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (r *stubUserRepo) TouchToken(context.Context, uuid.UUID, time.Time) error { return nil }

type stubBridgeRepo struct{}

func (stubBridgeRepo) UpsertWraps(context.Context, []models.WrapTokenRequest) (int64, error) {
	return 0, nil
}

func (stubBridgeRepo) UpsertUnwraps(context.Context, []models.UnwrapTokenRequest) (int64, error) {
	return 0, nil
}

func (stubBridgeRepo) WrapCount(context.Context) (int64, error) { return 0, nil }

func (stubBridgeRepo) UnwrapCount(context.Context) (int64, error) { return 0, nil }

func (stubBridgeRepo) MaxWrapHeight(context.Context) (uint64, error) { return 0, nil }

func (stubBridgeRepo) MaxUnwrapHeight(context.Context) (uint64, error) { return 0, nil }

func (stubBridgeRepo) PendingWrapIDs(context.Context) ([]string, error) { return nil, nil }

func (stubBridgeRepo) PendingUnwrapKeys(context.Context) ([]models.UnwrapKey, error) {
	return nil, nil
}

func (stubBridgeRepo) QueryWraps(context.Context, repository.WrapFilter) ([]models.WrapTokenRequest, int64, error) {
	return nil, 0, nil
}

func (stubBridgeRepo) QueryUnwraps(context.Context, repository.UnwrapFilter) ([]models.UnwrapTokenRequest, int64, error) {
	return nil, 0, nil
}

func (stubBridgeRepo) WrapVolumes(context.Context) ([]repository.TokenVolume, error) {
	return nil, nil
}

func (stubBridgeRepo) UnwrapVolumes(context.Context) ([]repository.TokenVolume, error) {
	return nil, nil
}

func (stubBridgeRepo) WrapActivity(context.Context, time.Time, time.Duration) ([]repository.BucketCount, error) {
	return nil, nil
}

func (stubBridgeRepo) UnwrapActivity(context.Context, time.Time, time.Duration) ([]repository.BucketCount, error) {
	return nil, nil
}

type stubOrchRepo struct{}

func (stubOrchRepo) ListNodes(context.Context, bool) ([]models.OrchestratorNode, error) {
	return nil, nil
}

func (stubOrchRepo) GetNode(context.Context, uint) (*models.OrchestratorNode, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubOrchRepo) UpsertNode(context.Context, *models.OrchestratorNode) error { return nil }

func (stubOrchRepo) SetNodeActive(context.Context, uint, bool) error { return nil }

func (stubOrchRepo) SaveRound(context.Context, []models.OrchestratorSnapshot) error { return nil }

func (stubOrchRepo) LatestSnapshots(context.Context) ([]models.OrchestratorSnapshot, error) {
	return nil, nil
}

func (stubOrchRepo) History(context.Context, uint, time.Time, int, int) ([]models.OrchestratorSnapshot, int64, error) {
	return nil, 0, nil
}

func (stubOrchRepo) UptimeSince(context.Context, time.Time) ([]repository.NodeUptime, error) {
	return nil, nil
}

func (stubOrchRepo) FleetActivity(context.Context, time.Time, time.Duration) ([]repository.FleetBucket, error) {
	return nil, nil
}

func (stubOrchRepo) PruneSnapshots(context.Context, time.Time) (int64, error) { return 0, nil }

// newTestRouter builds the full engine over stub repositories and a
// miniredis-backed cache, plus a session token for an active user.
func newTestRouter(t *testing.T) (*gin.Engine, *cache.Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cacheService := cache.NewService(rdb, logger)

	cfg := config.Default()
	cfg.Auth.SecretKey = "router-test-secret"

	user := &models.User{
		ID:                 uuid.New(),
		Username:           "reader",
		IsActive:           true,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}
	userRepo := &stubUserRepo{users: map[uuid.UUID]*models.User{user.ID: user}}

	authService := services.NewAuthService(userRepo, cacheService, &cfg.Auth, time.Minute, logger)
	bridgeService := services.NewBridgeService(stubBridgeRepo{}, cacheService, logger)
	orchService := services.NewOrchestratorService(stubOrchRepo{}, cacheService, &cfg.Orchestrator, time.Minute, logger)
	statsService := services.NewStatisticsService(stubBridgeRepo{}, stubOrchRepo{}, cacheService, time.Minute, logger)
	hub := services.NewStatusHub(logger)

	h := Handlers{
		Auth:         handlers.NewAuthHandler(authService, logger),
		User:         handlers.NewUserHandler(authService, logger),
		Bridge:       handlers.NewBridgeHandler(bridgeService, logger),
		Orchestrator: handlers.NewOrchestratorHandler(orchService, logger),
		Statistics:   handlers.NewStatisticsHandler(statsService, logger),
		WebSocket:    handlers.NewWebSocketHandler(hub, authService, logger),
		Health:       handlers.NewHealthHandler(nil, rdb, cacheService),
	}
	limiter := middleware.NewRateLimiter(rdb, &cfg.RateLimit, logger)
	engine := Setup(cfg, h, authService, limiter, cacheService, logger)

	token, err := auth.CreateSessionToken(cfg.Auth.SecretKey, user.ID, time.Hour)
	require.NoError(t, err)
	return engine, cacheService, token
}

func authedGet(engine *gin.Engine, token, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestMirrorBackedRoutesGateUntilSyncComplete(t *testing.T) {
	engine, flags, token := newTestRouter(t)

	// Uptime reads orchestrator snapshots, not the mirror, so it
	// serves while the initial sync is still running.
	w := authedGet(engine, token, "/api/v1/statistics/uptime")
	assert.Equal(t, http.StatusOK, w.Code)

	w = authedGet(engine, token, "/api/v1/statistics/bridge")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SYNC_IN_PROGRESS")

	w = authedGet(engine, token, "/api/v1/bridge/wraps")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = authedGet(engine, token, "/api/v1/bridge/sync-status")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, flags.SetSyncComplete(context.Background(), true))

	w = authedGet(engine, token, "/api/v1/statistics/bridge")
	assert.Equal(t, http.StatusOK, w.Code)

	w = authedGet(engine, token, "/api/v1/bridge/wraps")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutesRejectMissingToken(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/statistics/uptime", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_TOKEN")
}
