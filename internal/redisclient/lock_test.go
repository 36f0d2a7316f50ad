package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/walkin-scheduling/internal/booking"
)

func newTestLocker(t *testing.T) (*SlotLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSlotLocker(client, 5*time.Second), mr
}

func TestWithSlotLockRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)

	ran := false
	err := locker.WithSlotLock(context.Background(), "Dr. Lee|2026-09-01 09:00-09:30", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:slot:Dr. Lee|2026-09-01 09:00-09:30"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:slot:Dr. Lee|2026-09-01 09:00-09:30"), "lock released after fn")
}

func TestWithSlotLockContention(t *testing.T) {
	locker, _ := newTestLocker(t)
	key := "Dr. Lee|2026-09-01 09:00-09:30"

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		// second acquisition while held must report busy
		inner := locker.WithSlotLock(ctx, key, func(ctx context.Context) error {
			t.Fatal("critical section entered twice")
			return nil
		})
		assert.ErrorIs(t, inner, booking.ErrLockBusy)
		return nil
	})
	require.NoError(t, err)

	// released: a fresh acquisition succeeds
	err = locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestWithSlotLockDifferentSlotsIndependent(t *testing.T) {
	locker, _ := newTestLocker(t)

	err := locker.WithSlotLock(context.Background(), "Dr. Lee|a", func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, "Dr. Adams|b", func(ctx context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

func TestWithSlotLockPropagatesFnError(t *testing.T) {
	locker, mr := newTestLocker(t)

	wantErr := assert.AnError
	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, mr.Exists("lock:slot:k"))
}
