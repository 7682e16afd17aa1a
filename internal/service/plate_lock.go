package service

import "sync"

// plateLocks hands out one mutex per plate. Entries are reference counted and
// removed once nobody holds or waits on them.
type plateLocks struct {
	mu    sync.Mutex
	locks map[string]*plateLock
}

type plateLock struct {
	mu   sync.Mutex
	refs int
}

func newPlateLocks() *plateLocks {
	return &plateLocks{locks: make(map[string]*plateLock)}
}

// lock blocks until the plate is free and returns the matching unlock func.
func (l *plateLocks) lock(plate string) func() {
	l.mu.Lock()
	entry, ok := l.locks[plate]
	if !ok {
		entry = &plateLock{}
		l.locks[plate] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, plate)
		}
		l.mu.Unlock()
	}
}

func (l *plateLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
