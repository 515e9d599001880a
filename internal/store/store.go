// Package store persists conversation sessions. Three backends implement
// the same interface: SQLite for durable single-node deployments, Redis for
// shared state across instances, and an in-memory map for tests and
// ephemeral runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/orderdesk/internal/domain"
)

// ErrNotFound is returned when no session exists for the requested id.
var ErrNotFound = errors.New("session not found")

// Repository persists sessions between conversation turns.
type Repository interface {
	// Get retrieves a session by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Put creates or replaces a session.
	Put(ctx context.Context, sess *domain.Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// CleanupExpired removes sessions idle longer than ttl and reports how
	// many were removed.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by New.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend    string
	DBPath     string        // sqlite
	RedisAddr  string        // redis
	SessionTTL time.Duration // redis key expiry; advisory for the others
}

// New builds the repository for the configured backend.
func New(ctx context.Context, cfg Config) (Repository, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return NewSQLite(cfg.DBPath)
	case BackendRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.SessionTTL)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown session storage backend %q", cfg.Backend)
	}
}
