package service

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

// ResourceLocker serialises writers touching the same room or faculty member
// on the same date.
type ResourceLocker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// LockKeys lists the serialisation points for a set of proposals: one per
// (room, date) and one per (faculty member, date), sorted so every writer
// acquires them in the same order. Students are not locked.
func LockKeys(proposals []models.Allocation) []string {
	set := make(map[string]struct{})
	for _, p := range proposals {
		date := p.DateKey()
		if key := p.RoomKey(); key != "" {
			set["room:"+key+":"+date] = struct{}{}
		}
		for _, id := range p.FacultyIDs {
			if id == "" {
				continue
			}
			set["faculty:"+id+":"+date] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MemoryLocker is an in-process ResourceLocker for single instance deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker constructs an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

// Acquire locks every key in sorted order, waiting until ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]string, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for i, key := range sorted {
		if i > 0 && sorted[i-1] == key {
			continue
		}
		lock := l.ref(key)
		select {
		case lock.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.unref(key)
			release()
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, "timed out waiting for "+key)
		}
	}
	return release, nil
}

func (l *MemoryLocker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (l *MemoryLocker) unlock(key string) {
	l.mu.Lock()
	lock := l.locks[key]
	l.mu.Unlock()
	if lock != nil {
		<-lock.ch
	}
	l.unref(key)
}

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(l.locks, key)
	}
}
