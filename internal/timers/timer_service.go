// Package timers provides the real clock-backed TimerService. Timer
// callbacks run on their own goroutines; consumers serialize internally.
package timers

import (
	"sync"
	"time"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

type timerKind int

const (
	oneShot timerKind = iota
	interval
)

type activeTimer struct {
	kind   timerKind
	timer  *time.Timer
	ticker *time.Ticker
	done   chan struct{}
}

// Service implements domain.TimerService on time.AfterFunc and
// time.Ticker.
type Service struct {
	mu     sync.Mutex
	nextID domain.TimerHandle
	active map[domain.TimerHandle]*activeTimer
}

func New() *Service {
	return &Service{active: make(map[domain.TimerHandle]*activeTimer)}
}

// StartOneShot schedules fn to run once after d.
func (s *Service) StartOneShot(d time.Duration, fn func()) domain.TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h := s.nextID
	s.active[h] = &activeTimer{
		kind: oneShot,
		timer: time.AfterFunc(d, func() {
			s.remove(h)
			fn()
		}),
	}
	return h
}

// StartInterval schedules fn to run every period until cancelled.
func (s *Service) StartInterval(period time.Duration, fn func()) domain.TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h := s.nextID
	at := &activeTimer{
		kind:   interval,
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}
	s.active[h] = at

	go func() {
		for {
			select {
			case <-at.ticker.C:
				fn()
			case <-at.done:
				return
			}
		}
	}()
	return h
}

// Cancel stops the timer identified by h. Cancelling an already fired or
// unknown handle is a no-op, so callers never track fired state.
func (s *Service) Cancel(h domain.TimerHandle) {
	s.mu.Lock()
	at, ok := s.active[h]
	if ok {
		delete(s.active, h)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.stop(at)
}

// Stop cancels every outstanding timer. Used on shutdown.
func (s *Service) Stop() {
	s.mu.Lock()
	all := s.active
	s.active = make(map[domain.TimerHandle]*activeTimer)
	s.mu.Unlock()
	for _, at := range all {
		s.stop(at)
	}
}

func (s *Service) stop(at *activeTimer) {
	switch at.kind {
	case oneShot:
		at.timer.Stop()
	case interval:
		at.ticker.Stop()
		close(at.done)
	}
}

func (s *Service) remove(h domain.TimerHandle) {
	s.mu.Lock()
	delete(s.active, h)
	s.mu.Unlock()
}

var _ domain.TimerService = (*Service)(nil)
