package conn

// The poll chain gives idle connections a periodic heartbeat: the
// command channel is strictly request/response and offers no
// spontaneous signal of its own.  One chain runs per activation.  Each
// firing re-checks the slot under the lock; if the generation moved on
// or the connection went inactive, the chain simply does not re-arm.
func (m *Manager) schedulePoll(index int, gen uint64) {
	err := m.timers.ScheduleOnce(m.pollInterval, func() {
		m.poll(index, gen)
	})
	if err != nil {
		m.logger.Debug("Poll chain for connection %v stopped: %v", index, err)
	}
}

func (m *Manager) poll(index int, gen uint64) {
	if m.ctrl.IsClosed() {
		return
	}

	m.lock.Lock()
	s := &m.slots[index]
	if s.gen != gen || !s.active {
		m.lock.Unlock()
		return
	}
	handler := s.handler
	m.lock.Unlock()

	m.stats.polls.Inc(1)
	m.dispatch(handler, Event{Type: EventPoll, Conn: Conn{m, index, gen}})
	m.schedulePoll(index, gen)
}
