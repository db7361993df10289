package orchestrator

import "sync"

// threadLocks serializes turns per thread id. Entries are reference counted
// and removed once the last holder releases, so the map does not grow with
// the number of threads ever seen.
type threadLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{entries: make(map[string]*lockEntry)}
}

func (l *threadLocks) lock(threadID string) {
	l.mu.Lock()
	entry, ok := l.entries[threadID]
	if !ok {
		entry = &lockEntry{}
		l.entries[threadID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *threadLocks) unlock(threadID string) {
	l.mu.Lock()
	entry := l.entries[threadID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, threadID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
