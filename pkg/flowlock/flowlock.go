// Package flowlock serializes read-modify-write cycles on a survey flow. A lock is held per
// key (one key per project and survey) with a bounded wait.
package flowlock

import (
	"context"
	"errors"
	"sync"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const DEFAULT_WAIT = 10 * time.Second

var ErrLockTimeout = errors.New("timed out waiting for flow lock")

// Unlock releases a held lock. Calling it more than once has no effect.
type Unlock func()

type Locker interface {
	// Lock blocks until the lock for key is held, ctx is done or wait elapsed. A timeout is a
	// retryable FlowWriteError.
	Lock(ctx context.Context, key string, wait time.Duration) (Unlock, error)
}

// Key returns the lock key of a survey flow.
func Key(instanceID string, projectID string, surveyID string) string {
	return "flow:" + instanceID + ":" + projectID + ":" + surveyID
}

func timeoutError(key string) error {
	return ddsTypes.NewFlowWriteError("lock "+key, 0, ErrLockTimeout)
}

func waitOrDefault(wait time.Duration) time.Duration {
	if wait <= 0 {
		return DEFAULT_WAIT
	}
	return wait
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is a Locker for a single process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyLock{}}
}

func (k *KeyedMutex) acquireRef(key string) *keyLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *KeyedMutex) releaseRef(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string, wait time.Duration) (Unlock, error) {
	l := k.acquireRef(key)

	timer := time.NewTimer(waitOrDefault(wait))
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				k.releaseRef(key, l)
			})
		}, nil
	case <-ctx.Done():
		k.releaseRef(key, l)
		return nil, ctx.Err()
	case <-timer.C:
		k.releaseRef(key, l)
		return nil, timeoutError(key)
	}
}
