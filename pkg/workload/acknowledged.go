package workload

import (
	"math/rand"
	"sync"
)

// maxDrawAttempts bounds redraws when a drawn key failed to insert
const maxDrawAttempts = 16

// ackCounter hands out insert key numbers and tracks which of them finished.
// Only numbers below limit, where every earlier insert has finished, are
// offered to reads, updates and deletes, and failed inserts are skipped.
type ackCounter struct {
	mutex    sync.RWMutex
	next     int64
	limit    int64
	finished map[int64]struct{}
	failed   map[int64]struct{}
}

// newAckCounter treats key numbers below start as already inserted
func newAckCounter(start int64) *ackCounter {
	return &ackCounter{
		next:     start,
		limit:    start,
		finished: make(map[int64]struct{}),
		failed:   make(map[int64]struct{}),
	}
}

// reserve returns the next key number to insert
func (a *ackCounter) reserve() int64 {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	keynum := a.next
	a.next++
	return keynum
}

// acknowledge marks a reserved key number as done
func (a *ackCounter) acknowledge(keynum int64, ok bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !ok {
		a.failed[keynum] = struct{}{}
	}
	a.finished[keynum] = struct{}{}
	for {
		if _, done := a.finished[a.limit]; !done {
			break
		}
		delete(a.finished, a.limit)
		a.limit++
	}
}

// markFailed records a key number below the limit that was never written
func (a *ackCounter) markFailed(keynum int64) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.failed[keynum] = struct{}{}
}

// draw picks a random acknowledged key number. ok is false when no written
// key exists.
func (a *ackCounter) draw(rng *rand.Rand) (keynum int64, ok bool) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.limit <= 0 {
		return 0, false
	}
	for i := 0; i < maxDrawAttempts; i++ {
		keynum = rng.Int63n(a.limit)
		if _, failed := a.failed[keynum]; !failed {
			return keynum, true
		}
	}

	// Mostly failures: take the nearest written key to the last draw
	for k := keynum; k >= 0; k-- {
		if _, failed := a.failed[k]; !failed {
			return k, true
		}
	}
	for k := keynum + 1; k < a.limit; k++ {
		if _, failed := a.failed[k]; !failed {
			return k, true
		}
	}
	return 0, false
}
