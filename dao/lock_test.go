package dao

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"
)

func TestMemoryLockerExcludes(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, AccountLockKey("a"))
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Inc()
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Dec()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, l.held())
}

func TestMemoryLockerKeysAreIndependent(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, AccountLockKey("a"))
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, AccountLockKey("b"))
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestMemoryLockerHonoursContext(t *testing.T) {
	l := NewMemoryLocker()

	unlock, err := l.Lock(context.Background(), OwnerLockKey("o"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, OwnerLockKey("o"))
	assert.True(t, xerrors.Is(err, context.DeadlineExceeded))

	unlock()
	unlock()
	assert.Zero(t, l.held())

	unlock, err = l.Lock(context.Background(), OwnerLockKey("o"))
	require.NoError(t, err)
	unlock()
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "msig_lock_account:0xA", BuildLockKey(AccountLockKey("0xA")))
	assert.Equal(t, "request_status_0xA", BuildRequestStatusKey("0xA"))
	assert.Equal(t, "msig_notify", BuildNotifyKey())
}
