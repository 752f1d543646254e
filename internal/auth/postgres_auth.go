package auth

import (
	"context"
	"strings"
	"time"

	"github.com/kingmouse-ai/moat/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CustomerStore abstracts the registry lookup for testability.
type CustomerStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*store.Customer, error)
}

// PostgresAuthenticator validates API keys against the customers table.
// Uses Cache with stale-while-revalidate to keep DB + bcrypt off the
// hot path. Auth failures always return an error: no guardrail check
// runs for an unidentified customer.
type PostgresAuthenticator struct {
	store  CustomerStore
	cache  *Cache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	Store    CustomerStore
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates an authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  cfg.Store,
		cache:  NewCache(ttl),
		logger: cfg.Logger,
	}
}

// Authenticate implements Authenticator.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, token string) (*CustomerContext, error) {
	if len(token) < 8 || !strings.HasPrefix(token, "cmk_") {
		return nil, ErrInvalidAPIKey
	}

	res := a.cache.Get(token)
	if res.Hit && res.NeedsRefresh {
		// Serve stale, refresh in the background.
		go a.refresh(token)
	}
	if res.Hit && res.Customer != nil {
		return res.Customer, nil
	}

	customer, err := a.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	a.cache.Set(token, customer)
	return customer, nil
}

func (a *PostgresAuthenticator) lookup(ctx context.Context, token string) (*CustomerContext, error) {
	c, err := a.store.LookupByPrefix(ctx, token[:8])
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.APIKeyHash), []byte(token)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &CustomerContext{
		CustomerID: c.ID,
		Name:       c.Name,
		Flagged:    c.Flagged,
	}, nil
}

func (a *PostgresAuthenticator) refresh(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	customer, err := a.lookup(ctx, token)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Delete(token)
		return
	}
	a.cache.Set(token, customer)
}
