package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/keygen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOperationTimeout = 500 * time.Millisecond
	testShutdownTimeout  = 5 * time.Second
)

// mockRepository stores keys in memory and records last_used_at writes.
type mockRepository struct {
	mu      sync.Mutex
	keys    map[string]*domain.APIKey
	touches []string

	touchDelay time.Duration
	touchErr   error
	createErr  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{keys: make(map[string]*domain.APIKey)}
}

func (m *mockRepository) FindByShortToken(_ context.Context, shortToken string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[shortToken]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (m *mockRepository) UpdateLastUsed(ctx context.Context, keyID string, _ time.Time) error {
	if m.touchDelay > 0 {
		select {
		case <-time.After(m.touchDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	m.touches = append(m.touches, keyID)
	m.mu.Unlock()
	return m.touchErr
}

func (m *mockRepository) Create(_ context.Context, key *domain.APIKey) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.ShortToken] = key
	return nil
}

func (m *mockRepository) touchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.touches)
}

func (m *mockRepository) only() *domain.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		return k
	}
	return nil
}

func newTestAuthenticator(t *testing.T, repo Repository, cfg Config) *Authenticator {
	t.Helper()
	a := NewAuthenticator(context.Background(), repo, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testShutdownTimeout)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestIssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	a := newTestAuthenticator(t, repo, Config{OperationTimeout: testOperationTimeout})

	raw, err := IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1", Name: "laptop"})
	require.NoError(t, err)

	stored := repo.only()
	require.NotNil(t, stored)
	assert.NotContains(t, stored.LongSecretHash, raw, "plain secret must not be stored")
	assert.Equal(t, "owner-1", stored.OwnerID)
	assert.True(t, stored.IsActive)

	key, err := a.Authenticate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", key.OwnerID)

	assert.Eventually(t, func() bool { return repo.touchCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestIssueAPIKey_Validation(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()

	_, err := IssueAPIKey(ctx, repo, IssueRequest{Name: "laptop"})
	assert.ErrorIs(t, err, domain.ErrOwnerRequired)

	_, err = IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	repo.createErr = errors.New("insert failed")
	_, err = IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1", Name: "laptop"})
	assert.ErrorIs(t, err, repo.createErr)
}

func TestAuthenticate_Rejections(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(raw string, key *domain.APIKey) string
	}{
		{"malformed key", func(string, *domain.APIKey) string { return "not-a-key" }},
		{"unknown short token", func(raw string, _ *domain.APIKey) string {
			parts, _ := keygen.ParseAPIKey(raw)
			return "sk-dayplan-v1-000000000000-" + parts.LongSecret
		}},
		{"wrong secret", func(raw string, _ *domain.APIKey) string {
			parts, _ := keygen.ParseAPIKey(raw)
			return "sk-dayplan-v1-" + parts.ShortToken + "-wrongsecret"
		}},
		{"expired", func(raw string, key *domain.APIKey) string {
			key.ExpiresAt = &past
			return raw
		}},
		{"inactive", func(raw string, key *domain.APIKey) string {
			key.IsActive = false
			return raw
		}},
		{"ownerless", func(raw string, key *domain.APIKey) string {
			key.OwnerID = ""
			return raw
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			a := newTestAuthenticator(t, repo, Config{OperationTimeout: testOperationTimeout})

			raw, err := IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1", Name: "laptop"})
			require.NoError(t, err)

			presented := tt.mutate(raw, repo.only())

			_, err = a.Authenticate(ctx, presented)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestAuthenticate_HashesSecretForUnknownKeys(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	a := newTestAuthenticator(t, repo, Config{OperationTimeout: testOperationTimeout})

	var hashed []string
	a.hash = func(secret string) string {
		hashed = append(hashed, secret)
		return keygen.HashSecret(secret)
	}

	raw, err := IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1", Name: "laptop"})
	require.NoError(t, err)
	parts, err := keygen.ParseAPIKey(raw)
	require.NoError(t, err)

	_, err = a.Authenticate(ctx, "sk-dayplan-v1-000000000000-"+parts.LongSecret)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = a.Authenticate(ctx, "sk-dayplan-v1-"+parts.ShortToken+"-wrongsecret")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, []string{parts.LongSecret, "wrongsecret"}, hashed)
}

func TestAuthenticator_ShutdownDrainsQueue(t *testing.T) {
	repo := newMockRepository()
	repo.touchDelay = 20 * time.Millisecond
	a := NewAuthenticator(context.Background(), repo, Config{TouchQueueSize: 50, OperationTimeout: testOperationTimeout})

	for i := 0; i < 5; i++ {
		a.touches <- touch{keyID: "key", at: time.Now().UTC()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), testShutdownTimeout)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	assert.Equal(t, 5, repo.touchCount())
	assert.NoError(t, a.Shutdown(ctx), "shutdown is idempotent")
}

func TestAuthenticator_ShutdownTimeout(t *testing.T) {
	repo := newMockRepository()
	repo.touchDelay = 2 * time.Second
	a := NewAuthenticator(context.Background(), repo, Config{TouchQueueSize: 10, OperationTimeout: 5 * time.Second})

	for i := 0; i < 3; i++ {
		a.touches <- touch{keyID: "slow", at: time.Now().UTC()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := a.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAuthenticator_FullQueueDropsUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.touchDelay = 200 * time.Millisecond
	a := newTestAuthenticator(t, repo, Config{TouchQueueSize: 1, OperationTimeout: testOperationTimeout})

	raw, err := IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1", Name: "laptop"})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := a.Authenticate(ctx, raw)
		require.NoError(t, err, "authentication must not block on a full queue")
	}
}

func TestNewAuthenticator_Defaults(t *testing.T) {
	a := newTestAuthenticator(t, newMockRepository(), Config{OperationTimeout: -1})

	assert.Equal(t, DefaultOperationTimeout, a.timeout)
	assert.Equal(t, DefaultTouchQueueSize, cap(a.touches))
}

func TestOwnerFromContext(t *testing.T) {
	_, ok := OwnerFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithKey(context.Background(), &domain.APIKey{ID: "k1", OwnerID: "owner-1"})
	owner, ok := OwnerFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "owner-1", owner)

	key, ok := KeyFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "k1", key.ID)
}

func BenchmarkAuthenticate(b *testing.B) {
	ctx := context.Background()
	repo := newMockRepository()
	a := NewAuthenticator(ctx, repo, Config{TouchQueueSize: 1})
	defer func() { _ = a.Shutdown(ctx) }()

	raw, err := IssueAPIKey(ctx, repo, IssueRequest{OwnerID: "owner-1", Name: "bench"})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Authenticate(ctx, raw); err != nil {
			b.Fatal(err)
		}
	}
}
