package conn

import (
	"github.com/pkg/errors"

	"github.com/zbqxyz/GSM-AT-Lib/mbox"
)

// Write copies data into the connection's coalescing buffer, submitting
// a segment to the command channel every time one fills.  With flush
// set, whatever has accumulated is submitted immediately, including a
// zero-length segment when nothing has: a Write(nil, true) is the
// flush-only call pattern.
//
// Returns the free capacity remaining in the pending buffer, or zero
// when none exists.  A zero return alongside a nil error means the next
// buffer could not be allocated and the following Write will try again.
//
// Bytes already segmented and submitted are never rolled back; an
// allocation or submission failure mid-way surfaces as OutOfMemoryError
// with earlier segments left in flight.
func (c Conn) Write(data []byte, flush bool) (int, error) {
	m := c.mgr
	if m == nil {
		return 0, errors.WithStack(StaleHandleError)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return 0, err
	}
	if !s.active || s.closing {
		return 0, errors.WithStack(ClosingError)
	}

	seg := m.segmentSize

	// Top up the pending buffer, handing it off once full or flushed.
	if s.buf != nil {
		fit := seg - len(s.buf.B)
		if fit > len(data) {
			fit = len(data)
		}
		s.buf.B = append(s.buf.B, data[:fit]...)
		data = data[fit:]

		if len(s.buf.B) == seg || flush {
			m.handoffLocked(s)
		}
	}

	// Whole segments go straight out, one buffer each.
	for len(data) >= seg {
		buf, err := m.alloc.Alloc(seg)
		if err != nil {
			return 0, errors.WithStack(OutOfMemoryError)
		}

		buf.B = append(buf.B[:0], data[:seg]...)
		s.buf = buf
		if err := m.handoffLocked(s); err != nil {
			return 0, errors.WithStack(OutOfMemoryError)
		}

		data = data[seg:]
	}

	// Start a fresh buffer for the remainder, even a zero-length one,
	// so that a flush-only call still has something to flush.
	if s.buf == nil {
		if buf, err := m.alloc.Alloc(seg); err == nil {
			s.buf = buf
		}
	}
	if len(data) > 0 {
		if s.buf == nil {
			return 0, errors.WithStack(OutOfMemoryError)
		}
		s.buf.B = append(s.buf.B[:0], data...)
	}

	if flush && s.buf != nil {
		m.handoffLocked(s)
	}

	if s.buf == nil {
		return 0, nil
	}
	return seg - len(s.buf.B), nil
}

// Flush drains the pending coalescing buffer, if any.  Used ahead of
// out-of-band sends and of close, so buffered bytes keep their place in
// the command stream.
func (c Conn) Flush() error {
	m := c.mgr
	if m == nil {
		return errors.WithStack(StaleHandleError)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s, err := m.slotOf(c)
	if err != nil {
		return err
	}

	return m.handoffLocked(s)
}

// Transfers ownership of the slot's pending buffer to the pipeline.
// The slot's reference is cleared before the buffer leaves this
// function, inside the same critical section, so no two submissions can
// ever share a buffer.  On rejection the buffer is freed here rather
// than leaked.  Must be called with the lock held.
func (m *Manager) handoffLocked(s *slot) error {
	buf := s.buf
	s.buf = nil
	if buf == nil {
		return nil
	}

	size := len(buf.B)
	env := mbox.NewEnvelope(mbox.Send, s.index, s.gen).SetOwnedPayload(buf)
	if err := m.pipeline.Enqueue(env); err != nil {
		m.logger.Debug("Freeing rejected write buffer for connection %v", s.index)
		m.alloc.Free(buf)
		return errors.Wrapf(SubmitError, "pipeline rejected segment of %v bytes: %v", size, err)
	}

	m.stats.segmentsSubmitted.Inc(1)
	m.stats.bytesSubmitted.Inc(int64(size))
	return nil
}
