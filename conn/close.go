package conn

import (
	"github.com/pkg/errors"

	"github.com/zbqxyz/GSM-AT-Lib/mbox"
)

// Close requests an orderly shutdown of the connection.  The pending
// coalescing buffer, if any, is flushed first, so no buffered bytes are
// dropped; a flush failure does not stop the close.
//
// In non-blocking mode the connection is marked closing as soon as the
// command is accepted, and further writes are rejected from that point
// even though the wire-level close has yet to complete.  In blocking
// mode the flag is left to the completion path: the call returns once
// the module has confirmed, or the deadline has passed.
//
// A connection that is already closing, or no longer active, fails with
// ClosingError and produces no submission.
func (c Conn) Close(blocking bool) error {
	m := c.mgr
	if m == nil {
		return errors.WithStack(StaleHandleError)
	}

	m.lock.Lock()
	s, err := m.slotOf(c)
	if err != nil {
		m.lock.Unlock()
		return err
	}
	if !s.active || s.closing {
		m.lock.Unlock()
		return errors.WithStack(ClosingError)
	}

	if ferr := m.handoffLocked(s); ferr != nil {
		m.logger.Debug("Flush ahead of close failed on connection %v: %v", c.index, ferr)
	}

	env := mbox.NewEnvelope(mbox.Close, s.index, s.gen)
	m.lock.Unlock()

	if err := m.submit(env, blocking, m.closeTimeout); err != nil {
		return err
	}

	if !blocking {
		m.lock.Lock()
		if s, err := m.slotOf(c); err == nil {
			s.closing = true
			m.logger.Debug("Connection %v set to closing state", c.index)
		}
		m.lock.Unlock()
	}
	return nil
}
