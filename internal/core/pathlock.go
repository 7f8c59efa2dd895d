package core

import "sync"

// PathLocks serializes access to live workbook files by canonical path.
// Extraction takes the shared (read) scope; propose/accept/reject take the
// exclusive (write) scope, so extraction never observes a half-written cell.
//
// Locks are created on first use and kept for the process lifetime; the
// number of distinct workbooks in one session is small.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewPathLocks creates an empty lock registry.
func NewPathLocks() *PathLocks {
	return &PathLocks{locks: make(map[string]*sync.RWMutex)}
}

func (p *PathLocks) get(path string) *sync.RWMutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.RWMutex{}
		p.locks[path] = l
	}
	return l
}

// RLock acquires the shared scope for a path.
func (p *PathLocks) RLock(path string) { p.get(path).RLock() }

// RUnlock releases the shared scope for a path.
func (p *PathLocks) RUnlock(path string) { p.get(path).RUnlock() }

// Lock acquires the exclusive scope for a path.
func (p *PathLocks) Lock(path string) { p.get(path).Lock() }

// Unlock releases the exclusive scope for a path.
func (p *PathLocks) Unlock(path string) { p.get(path).Unlock() }
