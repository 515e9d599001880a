package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/orderdesk/internal/domain"
	"github.com/ashureev/orderdesk/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite. The session payload is
// stored as JSON blobs next to a few queryable metadata columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		resolved INTEGER NOT NULL DEFAULT 0,
		last_intent TEXT,
		last_order_id TEXT,
		last_order_status TEXT,
		last_resolution TEXT,
		dialogue_json TEXT NOT NULL,
		orders_json TEXT,
		entities_json TEXT,
		history_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get retrieves a session by id.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, resolved, last_intent, last_order_id,
		       last_order_status, last_resolution,
		       dialogue_json, orders_json, entities_json, history_json,
		       created_at, updated_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var sess domain.Session
	var resolved int
	var lastIntent, lastOrderID, lastOrderStatus, lastResolution sql.NullString
	var dialogueJSON string
	var ordersJSON, entitiesJSON, historyJSON sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.ID, &resolved, &lastIntent, &lastOrderID,
		&lastOrderStatus, &lastResolution,
		&dialogueJSON, &ordersJSON, &entitiesJSON, &historyJSON,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Resolved = resolved != 0
	sess.LastIntent = lastIntent.String
	sess.LastOrderID = lastOrderID.String
	sess.LastOrderStatus = domain.OrderStatus(lastOrderStatus.String)
	sess.LastResolution = lastResolution.String
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(dialogueJSON), &sess.Dialogue); err != nil {
		return nil, fmt.Errorf("decode dialogue state: %w", err)
	}
	if err := decodeBlob(ordersJSON, &sess.Orders); err != nil {
		return nil, fmt.Errorf("decode order states: %w", err)
	}
	if err := decodeBlob(entitiesJSON, &sess.PersistentEntities); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	if err := decodeBlob(historyJSON, &sess.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	if sess.Orders == nil {
		sess.Orders = make(map[string]*domain.OrderState)
	}
	if sess.PersistentEntities == nil {
		sess.PersistentEntities = make(map[string]string)
	}

	return &sess, nil
}

func decodeBlob(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}

// Put creates or replaces a session. SQLITE_BUSY conflicts are retried with
// exponential backoff.
func (s *SQLiteStore) Put(ctx context.Context, sess *domain.Session) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.putOnce(ctx, sess)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("session upsert hit SQLITE_BUSY, retrying",
				"session_id", sess.ID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteStore) putOnce(ctx context.Context, sess *domain.Session) error {
	dialogueJSON, err := json.Marshal(sess.Dialogue)
	if err != nil {
		return fmt.Errorf("encode dialogue state: %w", err)
	}
	ordersJSON, err := json.Marshal(sess.Orders)
	if err != nil {
		return fmt.Errorf("encode order states: %w", err)
	}
	entitiesJSON, err := json.Marshal(sess.PersistentEntities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	historyJSON, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query := `
		INSERT INTO sessions (
			session_id, resolved, last_intent, last_order_id,
			last_order_status, last_resolution,
			dialogue_json, orders_json, entities_json, history_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			resolved = excluded.resolved,
			last_intent = excluded.last_intent,
			last_order_id = excluded.last_order_id,
			last_order_status = excluded.last_order_status,
			last_resolution = excluded.last_resolution,
			dialogue_json = excluded.dialogue_json,
			orders_json = excluded.orders_json,
			entities_json = excluded.entities_json,
			history_json = excluded.history_json,
			updated_at = excluded.updated_at`

	resolved := 0
	if sess.Resolved {
		resolved = 1
	}

	_, err = s.db.ExecContext(ctx, query,
		sess.ID, resolved, sess.LastIntent, sess.LastOrderID,
		string(sess.LastOrderStatus), sess.LastResolution,
		string(dialogueJSON), string(ordersJSON), string(entitiesJSON), string(historyJSON),
		sess.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes sessions idle longer than ttl.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
