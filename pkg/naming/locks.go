package naming

import (
	"path/filepath"
	"sync"
)

// lockTable serializes sequence allocation per (directory, base, format)
// triple. The scan-then-allocate sequence in versioned mode is not safe
// under true concurrent writers: two jobs scanning the same directory at
// once could both allocate the same next sequence number. Callers running
// more than one worker must hold the triple's lock across the full
// compute-path-then-write window.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var sequenceLocks = &lockTable{locks: make(map[string]*sync.Mutex)}

// LockSequence acquires the lock for a (directory, base, format) triple and
// returns the unlock function. The base name is sanitized with the same
// rules as ComputePath so lock keys match lookup keys.
func LockSequence(dir, baseName, format string) (unlock func()) {
	key := filepath.Clean(dir) + "\x00" + SanitizeBaseName(baseName) + "\x00" + format

	sequenceLocks.mu.Lock()
	l, ok := sequenceLocks.locks[key]
	if !ok {
		l = &sync.Mutex{}
		sequenceLocks.locks[key] = l
	}
	sequenceLocks.mu.Unlock()

	l.Lock()
	return l.Unlock
}
