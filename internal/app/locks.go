package service

import (
	"hash/fnv"
	"sync"
)

const defaultLockStripes = 256

// lockTable serializes work per user inside one process. Users hashing to
// the same stripe share a mutex; that only costs throughput.
type lockTable struct {
	stripes []sync.Mutex
}

func newLockTable(n int) *lockTable {
	if n < 1 {
		n = defaultLockStripes
	}
	return &lockTable{stripes: make([]sync.Mutex, n)}
}

// lock acquires the stripe for key and returns its release.
func (t *lockTable) lock(key string) func() {
	m := &t.stripes[t.stripe(key)]
	m.Lock()
	return m.Unlock
}

func (t *lockTable) stripe(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(t.stripes))
}
