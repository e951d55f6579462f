package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/keygen"
)

// Default configuration values.
const (
	DefaultOperationTimeout = 5 * time.Second
	DefaultTouchQueueSize   = 1000
)

// Config holds configuration for the Authenticator.
type Config struct {
	OperationTimeout time.Duration // Timeout for storage operations, zero waits indefinitely
	TouchQueueSize   int           // Buffer size for last_used_at updates
}

// touch records one successful use of a key.
type touch struct {
	keyID string
	at    time.Time
}

// Authenticator resolves API keys to their owners.
//
// Successful lookups queue a last_used_at update that a single background
// worker writes, so request latency never waits on that write and a burst of
// requests cannot spawn unbounded goroutines.
type Authenticator struct {
	repo    Repository
	appCtx  context.Context // cancelled on shutdown
	touches chan touch
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	timeout time.Duration
	now     func() time.Time
	hash    func(secret string) string
}

// dummySecretHash stands in for the stored hash when no key matches, so a
// miss hashes and compares exactly like a wrong secret does.
const dummySecretHash = "0000000000000000000000000000000000000000000000000000000000000000"

// NewAuthenticator creates an authenticator and starts its last_used_at worker.
// ctx should be the application context that is cancelled on shutdown.
// Negative OperationTimeout and non-positive TouchQueueSize get defaults.
func NewAuthenticator(ctx context.Context, repo Repository, config Config) *Authenticator {
	if config.OperationTimeout < 0 {
		config.OperationTimeout = DefaultOperationTimeout
	}
	if config.TouchQueueSize <= 0 {
		config.TouchQueueSize = DefaultTouchQueueSize
	}

	a := &Authenticator{
		repo:    repo,
		appCtx:  ctx,
		touches: make(chan touch, config.TouchQueueSize),
		stop:    make(chan struct{}),
		timeout: config.OperationTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		hash:    keygen.HashSecret,
	}

	a.wg.Add(1)
	go a.run()

	return a
}

// opContext bounds a storage call by the configured timeout.
func (a *Authenticator) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.timeout == 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.timeout)
}

func (a *Authenticator) run() {
	defer a.wg.Done()

	for {
		select {
		case t := <-a.touches:
			a.write(a.appCtx, t)
		case <-a.stop:
			// flush what is queued; appCtx may already be cancelled
			for {
				select {
				case t := <-a.touches:
					a.write(context.Background(), t)
				default:
					return
				}
			}
		}
	}
}

func (a *Authenticator) write(parent context.Context, t touch) {
	ctx, cancel := a.opContext(parent)
	defer cancel()

	if err := a.repo.UpdateLastUsed(ctx, t.keyID, t.at); err != nil {
		slog.WarnContext(ctx, "failed to update API key last_used_at",
			slog.String("key_id", t.keyID),
			slog.String("error", err.Error()))
	}
}

// Shutdown stops the worker after it drains queued updates.
// It honours ctx's deadline and is safe to call more than once.
func (a *Authenticator) Shutdown(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		close(a.stop)

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("shutdown timeout: %w", ctx.Err())
		}
	})
	return err
}

// Authenticate validates a raw API key and returns the stored key, whose
// OwnerID identifies the caller. Any failure reads as domain.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	parts, err := keygen.ParseAPIKey(rawKey)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	opCtx, cancel := a.opContext(ctx)
	defer cancel()

	key, lookupErr := a.repo.FindByShortToken(opCtx, parts.ShortToken)
	stored := dummySecretHash
	if lookupErr == nil {
		stored = key.LongSecretHash
	}

	// Hash even on a miss: response time must not reveal whether the short
	// token exists.
	provided := a.hash(parts.LongSecret)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) != 1 || lookupErr != nil {
		return nil, domain.ErrUnauthorized
	}

	now := a.now()
	if !key.IsActive || key.OwnerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		return nil, domain.ErrUnauthorized
	}

	select {
	case a.touches <- touch{keyID: key.ID, at: now}:
	default:
		// queue full: last_used_at is best effort
		slog.WarnContext(ctx, "dropped last_used_at update, queue full",
			slog.String("key_id", key.ID))
	}

	return key, nil
}

// IssueRequest describes a key to mint.
type IssueRequest struct {
	OwnerID   string
	Name      string
	ExpiresAt *time.Time
}

// IssueAPIKey mints a key for an owner and returns the plain key.
// The plain key is never stored and cannot be shown again.
func IssueAPIKey(ctx context.Context, repo Repository, req IssueRequest) (string, error) {
	if req.OwnerID == "" {
		return "", domain.ErrOwnerRequired
	}
	name, err := domain.NewDisplayName(req.Name)
	if err != nil {
		return "", err
	}

	parts, err := keygen.GenerateAPIKey(keygen.DefaultKeyType, keygen.DefaultService, keygen.DefaultVersion)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	keyID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key ID: %w", err)
	}

	err = repo.Create(ctx, &domain.APIKey{
		ID:             keyID.String(),
		OwnerID:        req.OwnerID,
		KeyType:        parts.KeyType,
		Service:        parts.Service,
		Version:        parts.Version,
		ShortToken:     parts.ShortToken,
		LongSecretHash: keygen.HashSecret(parts.LongSecret),
		Name:           name.String(),
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	return parts.FullKey, nil
}
