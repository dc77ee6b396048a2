// Package sqlitestore provides durable sqlite storage for sessions.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/renderfleet/renderfleet/pkg/metrics"
	"github.com/renderfleet/renderfleet/pkg/session"
)

// Timestamps are stored as unix seconds so expiry comparisons are plain
// integer comparisons, independent of driver time formatting.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT NOT NULL,
    namespace TEXT NOT NULL,
    username TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, token)
);

CREATE INDEX IF NOT EXISTS idx_sessions_expiry
    ON sessions(namespace, expires_at);
`

// Store implements session.Store on a sqlite database. Rows are scoped by
// namespace so several gateway instances can share one file without seeing
// each other's sessions.
type Store struct {
	db        *sql.DB
	namespace string
	ttl       time.Duration
}

// Open opens (creating if needed) the session database at path and applies
// the schema. WAL keeps readers unblocked during writes; the busy timeout
// covers concurrent instances sharing the file. A non-positive ttl falls
// back to session.DefaultTTL.
func Open(path, namespace string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	// Every pooled connection of an in-memory database is its own database.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying session schema: %w", err)
	}

	return &Store{db: db, namespace: namespace, ttl: ttl}, nil
}

// Create mints a session for username and returns its token.
func (s *Store) Create(ctx context.Context, username string) (string, error) {
	token, err := session.NewToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	query := `
		INSERT INTO sessions (token, namespace, username, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		token, s.namespace, username, now.Unix(), now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	metrics.SessionsCreated.Inc()
	return token, nil
}

// Verify returns the live session for token. Expired rows are deleted on
// sight and reported as session.ErrNotFound.
func (s *Store) Verify(ctx context.Context, token string) (*session.Session, error) {
	query := `
		SELECT username, created_at, expires_at
		FROM sessions
		WHERE namespace = ? AND token = ?
	`
	row := s.db.QueryRowContext(ctx, query, s.namespace, token)

	var username string
	var createdAt, expiresAt int64
	err := row.Scan(&username, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if time.Now().Unix() >= expiresAt {
		// Best effort; the sweeper catches anything this misses.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE namespace = ? AND token = ?`, s.namespace, token)
		metrics.SessionsExpired.Inc()
		return nil, session.ErrNotFound
	}

	return &session.Session{
		Token:     token,
		Username:  username,
		CreatedAt: time.Unix(createdAt, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
	}, nil
}

// Invalidate removes the session. Unknown tokens are a no-op.
func (s *Store) Invalidate(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE namespace = ? AND token = ?`, s.namespace, token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		metrics.SessionsInvalidated.Inc()
	}
	return nil
}

// Cleanup removes expired sessions in this store's namespace.
func (s *Store) Cleanup(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE namespace = ? AND expires_at <= ?`, s.namespace, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cleaning up sessions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		metrics.SessionsExpired.Add(float64(n))
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
