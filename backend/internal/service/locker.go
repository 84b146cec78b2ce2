package service

import (
	"sync"

	"github.com/itchan-dev/blog/shared/domain"
)

// PostLocker serializes read-modify-write sequences per post.
// Entries are dropped once no goroutine holds or waits for them.
type PostLocker struct {
	mu    sync.Mutex
	locks map[domain.PostId]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func NewPostLocker() *PostLocker {
	return &PostLocker{locks: make(map[domain.PostId]*postLock)}
}

// Lock blocks until the post is free and returns the matching unlock func.
func (l *PostLocker) Lock(id domain.PostId) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &postLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// held is the number of posts with an active or pending lock.
func (l *PostLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
