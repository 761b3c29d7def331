package mocks

import (
	"sync"
	"time"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// ScheduledTimer records one timer armed on the MockTimerService.
type ScheduledTimer struct {
	Handle   domain.TimerHandle
	Duration time.Duration
	Repeats  bool
	fn       func()
}

// MockTimerService implements domain.TimerService with manual firing:
// nothing runs until a test calls Fire. This keeps state machine tests
// fully deterministic.
type MockTimerService struct {
	mu     sync.Mutex
	nextID domain.TimerHandle
	active map[domain.TimerHandle]*ScheduledTimer
}

// NewMockTimerService creates an empty MockTimerService.
func NewMockTimerService() *MockTimerService {
	return &MockTimerService{active: make(map[domain.TimerHandle]*ScheduledTimer)}
}

func (m *MockTimerService) StartOneShot(d time.Duration, fn func()) domain.TimerHandle {
	return m.schedule(d, fn, false)
}

func (m *MockTimerService) StartInterval(period time.Duration, fn func()) domain.TimerHandle {
	return m.schedule(period, fn, true)
}

func (m *MockTimerService) Cancel(h domain.TimerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, h)
}

func (m *MockTimerService) schedule(d time.Duration, fn func(), repeats bool) domain.TimerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	h := m.nextID
	m.active[h] = &ScheduledTimer{Handle: h, Duration: d, Repeats: repeats, fn: fn}
	return h
}

// Fire runs the callback of the given timer, removing it first when it is
// a one-shot. Firing a cancelled handle is a no-op and reports false.
func (m *MockTimerService) Fire(h domain.TimerHandle) bool {
	m.mu.Lock()
	st, ok := m.active[h]
	if ok && !st.Repeats {
		delete(m.active, h)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	st.fn()
	return true
}

// Active returns the currently armed timers, ordered by handle.
func (m *MockTimerService) Active() []*ScheduledTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ScheduledTimer, 0, len(m.active))
	for h := domain.TimerHandle(1); h <= m.nextID; h++ {
		if st, ok := m.active[h]; ok {
			out = append(out, st)
		}
	}
	return out
}

// OneShots returns the armed one-shot timers, ordered by handle. The state
// machine arms the OTP expiry timer before the resend cooldown timer.
func (m *MockTimerService) OneShots() []*ScheduledTimer {
	var out []*ScheduledTimer
	for _, st := range m.Active() {
		if !st.Repeats {
			out = append(out, st)
		}
	}
	return out
}

// Compile-time interface compliance verification
var _ domain.TimerService = (*MockTimerService)(nil)
