package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	memTestTTL      = 5 * time.Minute
	memTestShortTTL = 50 * time.Millisecond
)

func TestNewToken(t *testing.T) {
	tok1, err := NewToken()
	require.NoError(t, err)
	tok2, err := NewToken()
	require.NoError(t, err)

	assert.NotEqual(t, tok1, tok2)

	raw, err := base64.RawURLEncoding.DecodeString(tok1)
	require.NoError(t, err)
	assert.Len(t, raw, 32, "32 bytes of entropy per token")
}

func TestMemoryStore_CreateAndVerify(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := store.Verify(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "ops", sess.Username)
	assert.Equal(t, token, sess.Token)
	assert.WithinDuration(t, time.Now().Add(memTestTTL), sess.ExpiresAt, time.Second)
}

func TestMemoryStore_VerifyUnknownToken(t *testing.T) {
	store := NewMemoryStore(memTestTTL)

	_, err := store.Verify(context.Background(), "no-such-token")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_VerifyExpired(t *testing.T) {
	store := NewMemoryStore(memTestShortTTL)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	time.Sleep(2 * memTestShortTTL)

	_, err = store.Verify(ctx, token)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, store.Len(), "expired session deleted on sight")
}

func TestMemoryStore_Invalidate(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, token))
	_, err = store.Verify(ctx, token)
	assert.True(t, errors.Is(err, ErrNotFound))

	// Idempotent
	require.NoError(t, store.Invalidate(ctx, token))
	require.NoError(t, store.Invalidate(ctx, "never-existed"))
}

func TestMemoryStore_Cleanup(t *testing.T) {
	store := NewMemoryStore(memTestShortTTL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, "ops")
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.Len())

	time.Sleep(2 * memTestShortTTL)
	require.NoError(t, store.Cleanup(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_VerifyReturnsCopy(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	ctx := context.Background()

	token, err := store.Create(ctx, "ops")
	require.NoError(t, err)

	sess, err := store.Verify(ctx, token)
	require.NoError(t, err)
	sess.Username = "mallory"

	again, err := store.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", again.Username)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				token, err := store.Create(ctx, "ops")
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := store.Verify(ctx, token); err != nil {
					t.Error(err)
					return
				}
				if err := store.Invalidate(ctx, token); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}

func TestCleanupRoutine(t *testing.T) {
	store := NewMemoryStore(memTestShortTTL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, "ops")
		require.NoError(t, err)
	}

	cr := &CleanupRoutine{
		Log:      zaptest.NewLogger(t).Sugar(),
		Store:    store,
		Interval: 20 * time.Millisecond,
	}
	cr.Start()
	defer cr.Stop()

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond, "sweeper should remove expired sessions")
}

func TestCleanupRoutine_StopWithoutStart(t *testing.T) {
	cr := &CleanupRoutine{
		Log:   zaptest.NewLogger(t).Sugar(),
		Store: NewMemoryStore(memTestTTL),
	}
	cr.Stop()
}

func TestCleanupRoutine_StopHalts(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	cr := &CleanupRoutine{
		Log:      zaptest.NewLogger(t).Sugar(),
		Store:    store,
		Interval: 10 * time.Millisecond,
	}
	cr.Start()
	cr.Stop()

	// A second Stop must not panic or hang.
	cr.cancel = nil
	cr.Stop()
}
