package helper

// Scheduler collects recomputes requested outside a rendering pass and
// tells the host a new pass is needed.
type Scheduler struct {
	pending    map[*Handle]struct{}
	order      []*Handle
	onSchedule func()
	requested  bool
}

func newScheduler() *Scheduler {
	return &Scheduler{pending: make(map[*Handle]struct{})}
}

// Pending returns the number of queued recomputes.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Requested reports whether a pass has been requested since the last one began.
func (s *Scheduler) Requested() bool {
	return s.requested
}

func (s *Scheduler) enqueue(h *Handle) {
	if _, ok := s.pending[h]; !ok {
		s.pending[h] = struct{}{}
		s.order = append(s.order, h)
	}
	s.request()
}

// request notifies the host once per batch.
func (s *Scheduler) request() {
	if s.requested {
		return
	}
	s.requested = true
	if s.onSchedule != nil {
		s.onSchedule()
	}
}

// cancel drops a queued recompute for a destroyed instance.
func (s *Scheduler) cancel(h *Handle) {
	if _, ok := s.pending[h]; !ok {
		return
	}
	delete(s.pending, h)
	for i, p := range s.order {
		if p == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// flush drains the queue at the start of a pass.
func (s *Scheduler) flush() []*Handle {
	out := s.order
	s.order = nil
	s.pending = make(map[*Handle]struct{})
	s.requested = false
	return out
}
