package lottery

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyedMutexLocker implements Locker in process with one mutex per key.
// Idle keys are dropped once nobody holds or waits for them.
type KeyedMutexLocker struct {
	mu      sync.Mutex
	locks   map[string]*keyedLock
	timeout time.Duration
	monitor *SettlementMonitor
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutexLocker creates an in-process locker; timeout <= 0 waits as long as ctx allows
func NewKeyedMutexLocker(timeout time.Duration, monitor *SettlementMonitor) *KeyedMutexLocker {
	return &KeyedMutexLocker{
		locks:   make(map[string]*keyedLock),
		timeout: timeout,
		monitor: monitor,
	}
}

func (l *KeyedMutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()

	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case kl.ch <- struct{}{}:
		l.record(true, time.Since(start))
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.unref(key, kl)
				if l.monitor != nil {
					l.monitor.RecordLockRelease()
				}
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		l.record(false, time.Since(start))
		return nil, ErrLockTimeout.WithDetails(fmt.Sprintf("waited for %s", key)).WithCause(ctx.Err())
	}
}

func (l *KeyedMutexLocker) unref(key string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *KeyedMutexLocker) record(success bool, d time.Duration) {
	if l.monitor != nil {
		l.monitor.RecordLockAcquisition(success, d)
	}
}
