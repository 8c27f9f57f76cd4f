package core

import "sync"

// scenarioLocks hands out one mutex per scenario and forgets it once nobody
// holds or waits for it.
type scenarioLocks struct {
	mu    sync.Mutex
	locks map[string]*scenarioLock
}

type scenarioLock struct {
	sync.Mutex
	refs int
}

func (s *scenarioLocks) lock(scenarioID string) (unlock func()) {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*scenarioLock)
	}
	l, ok := s.locks[scenarioID]
	if !ok {
		l = &scenarioLock{}
		s.locks[scenarioID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, scenarioID)
		}
		s.mu.Unlock()
	}
}
