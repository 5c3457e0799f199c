package update

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// dirLocks serializes installs per install directory. An entry lives only
// while some install holds or waits on it.
type dirLocks struct {
	mu   sync.Mutex
	sems map[string]*dirLock
}

type dirLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newDirLocks() *dirLocks {
	return &dirLocks{sems: make(map[string]*dirLock)}
}

// acquire blocks until dir is free or ctx is done.
func (l *dirLocks) acquire(ctx context.Context, dir string) (func(), error) {
	key := lockKey(dir)

	l.mu.Lock()
	lock, ok := l.sems[key]
	if !ok {
		lock = &dirLock{sem: semaphore.NewWeighted(1)}
		l.sems[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, lock)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(key, lock)
		})
	}, nil
}

func (l *dirLocks) unref(key string, lock *dirLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.sems, key)
	}
}

func lockKey(dir string) string {
	key := filepath.Clean(dir)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	if runtime.GOOS == "windows" {
		key = strings.ToLower(key)
	}
	return key
}
