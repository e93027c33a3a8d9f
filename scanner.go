// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskID identifies a scheduled periodic action, returned by Schedule and
// consumed by Cancel.
type TaskID uint64

// Scheduler is the external periodic-scanner collaborator of spec §4.7.
// The core relies on its non-overlap guarantee: two invocations of the
// same action never run concurrently, which keeps the pending-call
// sweeper and the server liveness check simple (the pending-call table's
// own atomicity is the real safety net; non-overlap is a simplifying
// assumption on top of it, not a substitute for it).
type Scheduler interface {
	// Schedule runs action no sooner than due after this call, then
	// approximately every period, until Cancel(id) is called.
	Schedule(action func(), due, period time.Duration) (id TaskID)
	Cancel(id TaskID)
}

// tickerScheduler is the built-in Scheduler: one goroutine and one
// time.Timer/time.Ticker pair per scheduled action, in the style of the
// teacher's aznet-derived janitor/keepAlive loops (a ticker, a stop
// channel, a select). Non-overlap falls out naturally: a single goroutine
// calls action serially, never concurrently with itself.
type tickerScheduler struct {
	mu      sync.Mutex
	nextID  uint64
	tasks   map[TaskID]chan struct{}
	onPanic func(TaskID, any)
}

// NewTickerScheduler returns the default Scheduler implementation.
func NewTickerScheduler() Scheduler {
	return &tickerScheduler{tasks: make(map[TaskID]chan struct{})}
}

func (s *tickerScheduler) Schedule(action func(), due, period time.Duration) TaskID {
	id := TaskID(atomic.AddUint64(&s.nextID, 1))
	stop := make(chan struct{})

	s.mu.Lock()
	s.tasks[id] = stop
	s.mu.Unlock()

	go s.run(id, stop, action, due, period)
	return id
}

func (s *tickerScheduler) run(id TaskID, stop chan struct{}, action func(), due, period time.Duration) {
	timer := time.NewTimer(due)
	defer timer.Stop()

	select {
	case <-stop:
		return
	case <-timer.C:
		s.invoke(id, action)
	}

	if period <= 0 {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.invoke(id, action)
		}
	}
}

// invoke runs action once, recovering a panic so one bad tick does not
// take the scheduler goroutine down with it (spec §7 "Scheduler exceptions
// are caught and logged; the sweep continues on the next tick").
func (s *tickerScheduler) invoke(id TaskID, action func()) {
	defer func() {
		if r := recover(); r != nil && s.onPanic != nil {
			s.onPanic(id, r)
		}
	}()
	action()
}

func (s *tickerScheduler) Cancel(id TaskID) {
	s.mu.Lock()
	stop, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if ok {
		close(stop)
	}
}
