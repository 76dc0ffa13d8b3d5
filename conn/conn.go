package conn

// Conn is a caller-held handle to one connection: a slot index plus the
// generation observed when the handle was issued.  Handles are plain
// values and may be retained across asynchronous boundaries; every
// operation revalidates the generation against the table, so a handle
// whose slot has been recycled fails with StaleHandleError rather than
// acting on the wrong connection.
type Conn struct {
	mgr   *Manager
	index int
	gen   uint64
}

// Reports whether the handle still refers to a live connection.
func (c Conn) IsActive() bool {
	m := c.mgr
	if m == nil {
		return false
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	return err == nil && s.active
}

func (c Conn) IsClient() bool {
	m := c.mgr
	if m == nil {
		return false
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	return err == nil && s.active && s.client
}

func (c Conn) IsServer() bool {
	m := c.mgr
	if m == nil {
		return false
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	return err == nil && s.active && !s.client
}

// Reports whether the connection has been closed but the slot not yet
// reused.  A stale handle reports false; it can no longer say anything
// about the slot's current occupant.
func (c Conn) IsClosed() bool {
	m := c.mgr
	if m == nil {
		return false
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	return err == nil && !s.active
}

// The slot number, or -1 for a stale handle.
func (c Conn) Num() int {
	m := c.mgr
	if m == nil {
		return -1
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, err := m.slotOf(c); err != nil {
		return -1
	}
	return c.index
}

func (c Conn) Type() Type {
	m := c.mgr
	if m == nil {
		return TCP
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return TCP
	}
	return s.typ
}

func (c Conn) RemoteIP() string {
	m := c.mgr
	if m == nil {
		return ""
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return ""
	}
	return s.remoteIP
}

func (c Conn) RemotePort() int {
	m := c.mgr
	if m == nil {
		return 0
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return 0
	}
	return s.remotePort
}

func (c Conn) LocalPort() int {
	m := c.mgr
	if m == nil {
		return 0
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return 0
	}
	return s.localPort
}

// Total bytes ever received on the connection and handed to the caller.
func (c Conn) TotalReceived() uint64 {
	m := c.mgr
	if m == nil {
		return 0
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return 0
	}
	return s.totalReceived
}

func (c Conn) Arg() interface{} {
	m := c.mgr
	if m == nil {
		return nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return nil
	}
	return s.arg
}

func (c Conn) SetArg(arg interface{}) error {
	m := c.mgr
	if m == nil {
		return StaleHandleError
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return err
	}

	s.arg = arg
	return nil
}
