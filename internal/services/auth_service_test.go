package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hypercore-one/bridge-monitor/internal/auth"
	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/models"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*models.User
	tokens map[uuid.UUID]*models.APIToken
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[uuid.UUID]*models.User),
		tokens: make(map[uuid.UUID]*models.APIToken),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(_ context.Context, limit, offset int) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []models.User
	for _, user := range r.users {
		users = append(users, *user)
	}
	return users, int64(len(r.users)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) CreateToken(_ context.Context, token *models.APIToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	copied := *token
	r.tokens[token.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetTokenByHash(_ context.Context, hash string) (*models.APIToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) ListTokens(_ context.Context, userID uuid.UUID) ([]models.APIToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tokens []models.APIToken
	for _, token := range r.tokens {
		if token.UserID == userID {
			tokens = append(tokens, *token)
		}
	}
	return tokens, nil
}

func (r *fakeUserRepo) RevokeToken(_ context.Context, id uuid.UUID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok || token.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	token.IsRevoked = true
	return nil
}

func (r *fakeUserRepo) TouchToken(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.tokens[id]; ok {
		token.LastUsedAt = &at
	}
	return nil
}

func newAuthService(repo *fakeUserRepo) *AuthService {
	cfg := &config.AuthConfig{
		SecretKey:          "test-secret",
		APITokenPrefix:     "ora_",
		AccessTokenMinutes: 15,
	}
	return NewAuthService(repo, nil, cfg, time.Minute, testLogger())
}

func seedUser(t *testing.T, repo *fakeUserRepo, username, password string, active bool) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     active,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestLoginIssuesSessionToken(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "alice", "correct horse", true)
	svc := newAuthService(repo)

	user, token, err := svc.Login(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)

	// The issued token resolves back to the same user.
	resolved, err := svc.ResolveCredential(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "alice", "correct horse", true)
	svc := newAuthService(repo)

	_, _, err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "alice", "correct horse", false)
	svc := newAuthService(repo)

	_, _, err := svc.Login(context.Background(), "alice", "correct horse")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAPITokenLifecycle(t *testing.T) {
	repo := newFakeUserRepo()
	user := seedUser(t, repo, "alice", "correct horse", true)
	svc := newAuthService(repo)
	ctx := context.Background()

	plaintext, token, err := svc.CreateAPIToken(ctx, user.ID, "ci", 30)
	require.NoError(t, err)
	assert.Contains(t, plaintext, "ora_")
	require.NotNil(t, token.ExpiresAt)

	resolved, err := svc.ResolveCredential(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	// Token usage is recorded.
	tokens, err := svc.ListAPITokens(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.NotNil(t, tokens[0].LastUsedAt)

	require.NoError(t, svc.RevokeAPIToken(ctx, token.ID, user.ID))
	_, err = svc.ResolveCredential(ctx, plaintext)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestExpiredAPITokenRejected(t *testing.T) {
	repo := newFakeUserRepo()
	user := seedUser(t, repo, "alice", "correct horse", true)
	svc := newAuthService(repo)
	ctx := context.Background()

	plaintext, digest, err := auth.GenerateAPIToken("ora_")
	require.NoError(t, err)
	expired := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.CreateToken(ctx, &models.APIToken{
		UserID:    user.ID,
		TokenHash: digest,
		Name:      "stale",
		ExpiresAt: &expired,
	}))

	_, err = svc.ResolveCredential(ctx, plaintext)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestResolveUnknownAPIToken(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	_, err := svc.ResolveCredential(context.Background(), "ora_deadbeef")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserParams{Username: "bob", Email: "bob@example.com", Password: "pw123456"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserParams{Username: "bob", Email: "bob2@example.com", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUpdateUserPartial(t *testing.T) {
	repo := newFakeUserRepo()
	user := seedUser(t, repo, "alice", "correct horse", true)
	svc := newAuthService(repo)
	ctx := context.Background()

	inactive := false
	perSecond := 50
	updated, err := svc.UpdateUser(ctx, user.ID, UpdateUserParams{
		IsActive:           &inactive,
		RateLimitPerSecond: &perSecond,
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 50, updated.RateLimitPerSecond)
	assert.Equal(t, user.Email, updated.Email)
}
