package chord

import "sync"

// contextLocks serializes read-modify-write cycles per context id. Writes to
// different contexts proceed in parallel; writes to the same context take
// turns. Entries are reference-counted and dropped once unused so the table
// does not grow with the number of contexts ever touched.
type contextLocks struct {
	mu    sync.Mutex
	locks map[string]*contextLock
}

type contextLock struct {
	mu   sync.Mutex
	refs int
}

func newContextLocks() *contextLocks {
	return &contextLocks{locks: make(map[string]*contextLock)}
}

// acquire locks the given context id and returns the release function.
func (c *contextLocks) acquire(contextID string) func() {
	c.mu.Lock()
	l, ok := c.locks[contextID]
	if !ok {
		l = &contextLock{}
		c.locks[contextID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, contextID)
		}
		c.mu.Unlock()
	}
}
