package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kingmouse-ai/moat/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeCustomerStore is an in-memory CustomerStore keyed by key prefix.
type fakeCustomerStore struct {
	mu        sync.Mutex
	customers map[string]*store.Customer
	lookups   int
	err       error
}

func (f *fakeCustomerStore) LookupByPrefix(_ context.Context, prefix string) (*store.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.customers[prefix], nil
}

func hashKey(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func newFakeStore(t *testing.T, key string) *fakeCustomerStore {
	t.Helper()
	return &fakeCustomerStore{
		customers: map[string]*store.Customer{
			key[:8]: {
				ID:           "cust_1",
				Name:         "Acme",
				APIKeyHash:   hashKey(t, key),
				APIKeyPrefix: key[:8],
			},
		},
	}
}

func TestPostgresAuth_ValidKey(t *testing.T) {
	key := "cmk_0123456789abcdef"
	a := NewPostgresAuthenticator(PostgresAuthConfig{
		Store:  newFakeStore(t, key),
		Logger: zap.NewNop(),
	})

	customer, err := a.Authenticate(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer.CustomerID != "cust_1" || customer.Name != "Acme" {
		t.Errorf("unexpected customer: %+v", customer)
	}
}

func TestPostgresAuth_WrongKeySamePrefix(t *testing.T) {
	key := "cmk_0123456789abcdef"
	a := NewPostgresAuthenticator(PostgresAuthConfig{
		Store:  newFakeStore(t, key),
		Logger: zap.NewNop(),
	})

	// Same 8-char prefix, different remainder: bcrypt must reject it.
	_, err := a.Authenticate(context.Background(), "cmk_0123ffffffffffff")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestPostgresAuth_MalformedToken(t *testing.T) {
	a := NewPostgresAuthenticator(PostgresAuthConfig{
		Store:  &fakeCustomerStore{customers: map[string]*store.Customer{}},
		Logger: zap.NewNop(),
	})

	tests := []string{"", "short", "tsk_wrongprefix000", "cmk"}
	for _, token := range tests {
		if _, err := a.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("token %q: expected ErrInvalidAPIKey, got %v", token, err)
		}
	}
}

func TestPostgresAuth_UnknownPrefix(t *testing.T) {
	a := NewPostgresAuthenticator(PostgresAuthConfig{
		Store:  &fakeCustomerStore{customers: map[string]*store.Customer{}},
		Logger: zap.NewNop(),
	})

	_, err := a.Authenticate(context.Background(), "cmk_doesnotexist0000")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestPostgresAuth_CacheSkipsRepeatLookups(t *testing.T) {
	key := "cmk_0123456789abcdef"
	fake := newFakeStore(t, key)
	a := NewPostgresAuthenticator(PostgresAuthConfig{
		Store:    fake,
		CacheTTL: time.Minute,
		Logger:   zap.NewNop(),
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := a.Authenticate(ctx, key); err != nil {
			t.Fatalf("auth %d: %v", i+1, err)
		}
	}

	fake.mu.Lock()
	lookups := fake.lookups
	fake.mu.Unlock()
	if lookups != 1 {
		t.Errorf("expected a single store lookup with a warm cache, got %d", lookups)
	}
}

func TestPostgresAuth_StoreErrorSurfaces(t *testing.T) {
	a := NewPostgresAuthenticator(PostgresAuthConfig{
		Store:  &fakeCustomerStore{err: errors.New("db down")},
		Logger: zap.NewNop(),
	})

	if _, err := a.Authenticate(context.Background(), "cmk_0123456789abcdef"); err == nil {
		t.Error("store errors must fail authentication")
	}
}

func TestStaticAuth(t *testing.T) {
	a := NewStaticAuthenticator()
	ctx := context.Background()

	customer, err := a.Authenticate(ctx, "cmk_devkey000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer.CustomerID != "static-devk" {
		t.Errorf("expected static-devk, got %s", customer.CustomerID)
	}

	if _, err := a.Authenticate(ctx, "nope"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}
