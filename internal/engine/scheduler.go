package engine

import "container/heap"

// Handler dispatches a single fired Event. It is invoked with the
// scheduler's current logical time already advanced to e.FireTime.
type Handler func(e *Event)

// Scheduler owns the logical clock and the event queue. It is
// single-threaded and cooperative: a Handler may schedule further events
// (always at or after the current time) but must never block.
type Scheduler struct {
	queue   eventQueue
	seq     int64
	currTime int64
	handler Handler

	maxTime    int64
	hasMaxTime bool
	maxEvents  int64
	dispatched int64
}

// NewScheduler constructs an empty Scheduler dispatching to handler.
func NewScheduler(handler Handler) *Scheduler {
	s := &Scheduler{handler: handler}
	heap.Init(&s.queue)
	return s
}

// SetMaxTime installs the sim.terminate.atTime cutoff: Run stops once the
// next event's fire time would reach or exceed it.
func (s *Scheduler) SetMaxTime(t int64) {
	s.maxTime = t
	s.hasMaxTime = true
}

// SetMaxEvents installs a dispatched-event cap, a defensive backstop
// against runaway event storms in malformed configurations.
func (s *Scheduler) SetMaxEvents(n int64) {
	s.maxEvents = n
}

// CurrentTime returns the scheduler's logical clock.
func (s *Scheduler) CurrentTime() int64 { return s.currTime }

// Schedule enqueues an event, stamping it with the next insertion sequence
// number so identical fire times dispatch in schedule order.
func (s *Scheduler) Schedule(fireTime int64, kind Kind, payload any) *Event {
	e := NewEvent(fireTime, kind, payload)
	e.Seq = s.seq
	s.seq++
	heap.Push(&s.queue, e)
	return e
}

// ScheduleEvent enqueues an already-constructed Event (used when the caller
// needs the Event reference before it is queued, e.g. to hold it as a
// node's pending validation event).
func (s *Scheduler) ScheduleEvent(e *Event) {
	e.Seq = s.seq
	s.seq++
	heap.Push(&s.queue, e)
}

// Len reports the number of events still queued (ignored or not).
func (s *Scheduler) Len() int { return s.queue.Len() }

// Run drains the queue, dispatching every non-ignored event in
// (FireTime, Seq) order until the queue empties, the max-time cutoff is
// reached, or the max-events cap fires. It returns the reason it stopped.
func (s *Scheduler) Run() string {
	for {
		if s.queue.Len() == 0 {
			return "queue empty"
		}
		next := s.queue[0]
		if s.hasMaxTime && next.FireTime >= s.maxTime {
			s.currTime = s.maxTime
			return "terminate time reached"
		}
		if s.maxEvents > 0 && s.dispatched >= s.maxEvents {
			return "max events reached"
		}

		e := heap.Pop(&s.queue).(*Event)
		if e.IsIgnored() {
			continue
		}
		s.currTime = e.FireTime
		s.dispatched++
		s.handler(e)
	}
}
