package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Customer represents a row in the customers table. Flagged mirrors the
// rate limiter's persistent repeat-offender bit so it survives restarts.
type Customer struct {
	ID           string
	Name         string
	APIKeyHash   string
	APIKeyPrefix string
	Flagged      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GenerateAPIKey creates a new cmk_ API key with its bcrypt hash and
// prefix. Returns (fullKey, hash, prefix, error). The fullKey is shown
// to the operator once.
func GenerateAPIKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}
	fullKey := "cmk_" + hex.EncodeToString(raw) // 68 chars total

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}

	prefix := fullKey[:8] // "cmk_abcd"
	return fullKey, string(hashBytes), prefix, nil
}

// CreateCustomer inserts a new customer and returns it together with
// the plaintext API key (shown once).
func (s *Store) CreateCustomer(ctx context.Context, name string) (*Customer, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateCustomer: %w", err)
	}

	var c Customer
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, api_key_hash, api_key_prefix)
		VALUES ($1, $2, $3)
		RETURNING id, name, api_key_hash, api_key_prefix, flagged, created_at, updated_at`,
		name, keyHash, keyPrefix,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix, &c.Flagged, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateCustomer: %w", err)
	}

	return &c, fullKey, nil
}

// LookupByPrefix returns the customer whose API key starts with prefix,
// or nil if none exists. The caller verifies the full key against the
// bcrypt hash.
func (s *Store) LookupByPrefix(ctx context.Context, prefix string) (*Customer, error) {
	var c Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, flagged, created_at, updated_at
		FROM customers WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix, &c.Flagged, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupByPrefix: %w", err)
	}
	return &c, nil
}

// ListCustomers returns all customers ordered by created_at DESC.
func (s *Store) ListCustomers(ctx context.Context) ([]*Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, flagged, created_at, updated_at
		FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListCustomers: %w", err)
	}
	defer rows.Close()

	var customers []*Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix,
			&c.Flagged, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListCustomers: %w", err)
		}
		customers = append(customers, &c)
	}
	return customers, rows.Err()
}

// MarkFlagged sets the persistent repeat-offender bit for a customer.
func (s *Store) MarkFlagged(ctx context.Context, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE customers SET flagged = TRUE, updated_at = NOW() WHERE id = $1`,
		customerID)
	if err != nil {
		return fmt.Errorf("MarkFlagged: %w", err)
	}
	return nil
}
