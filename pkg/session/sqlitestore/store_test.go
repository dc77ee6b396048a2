package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderfleet/renderfleet/pkg/session"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := Open(":memory:", "renderfleet", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(path, "renderfleet", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Re-opening an existing database must not fail on the schema.
	store, err = Open(path, "renderfleet", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestCreateAndVerify(t *testing.T) {
	store := openTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := store.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", sess.Username)
	assert.Equal(t, token, sess.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 2*time.Second)
}

func TestVerifyUnknownToken(t *testing.T) {
	store := openTestStore(t, time.Hour)

	_, err := store.Verify(context.Background(), "no-such-token")
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestVerifyExpiredDeletesRow(t *testing.T) {
	store := openTestStore(t, time.Second)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	// Move the expiry into the past instead of sleeping.
	_, err = store.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE token = ?`, time.Now().Add(-time.Minute).Unix(), token)
	require.NoError(t, err)

	_, err = store.Verify(ctx, token)
	assert.True(t, errors.Is(err, session.ErrNotFound))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 0, count, "expired row deleted on sight")
}

func TestInvalidate(t *testing.T) {
	store := openTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, token))
	_, err = store.Verify(ctx, token)
	assert.True(t, errors.Is(err, session.ErrNotFound))

	// Idempotent
	require.NoError(t, store.Invalidate(ctx, token))
	require.NoError(t, store.Invalidate(ctx, "never-existed"))
}

func TestCleanup(t *testing.T) {
	store := openTestStore(t, time.Hour)
	ctx := context.Background()

	live, err := store.Create(ctx, "ops")
	require.NoError(t, err)
	stale, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE token = ?`, time.Now().Add(-time.Minute).Unix(), stale)
	require.NoError(t, err)

	require.NoError(t, store.Cleanup(ctx))

	_, err = store.Verify(ctx, live)
	assert.NoError(t, err)
	_, err = store.Verify(ctx, stale)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestNamespaceScoping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	east, err := Open(path, "gateway-east", time.Hour)
	require.NoError(t, err)
	defer func() { _ = east.Close() }()

	west, err := Open(path, "gateway-west", time.Hour)
	require.NoError(t, err)
	defer func() { _ = west.Close() }()

	ctx := context.Background()
	token, err := east.Create(ctx, "ops")
	require.NoError(t, err)

	// The other namespace must not see the session.
	_, err = west.Verify(ctx, token)
	assert.True(t, errors.Is(err, session.ErrNotFound))

	sess, err := east.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", sess.Username)

	// Cleanup in one namespace leaves the other alone.
	_, err = east.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE namespace = ?`, time.Now().Add(-time.Minute).Unix(), "gateway-east")
	require.NoError(t, err)
	require.NoError(t, west.Cleanup(ctx))

	var count int
	require.NoError(t, east.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE namespace = ?`, "gateway-east").Scan(&count))
	assert.Equal(t, 1, count, "foreign namespace cleanup must not touch these rows")
}

func TestSessionsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := Open(path, "renderfleet", time.Hour)
	require.NoError(t, err)

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, "renderfleet", time.Hour)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	sess, err := reopened.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", sess.Username)
}

func TestDefaultTTLApplied(t *testing.T) {
	store := openTestStore(t, 0)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	sess, err := store.Verify(ctx, token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(session.DefaultTTL), sess.ExpiresAt, 2*time.Second)
}
