package conn

import (
	"github.com/pkg/errors"

	"github.com/zbqxyz/GSM-AT-Lib/mbox"
)

// Send transmits data on an active connection.  Any pending coalescing
// buffer is topped up and flushed first so earlier Write bytes keep
// their position; the remainder is submitted as a single command whose
// payload stays owned by the caller.
//
// The returned count covers only the directly submitted portion, and
// only once the command completes, so it is meaningful for blocking
// sends.  Combining Write and Send on one connection makes the count an
// undercount of what actually moved.
func (c Conn) Send(data []byte, blocking bool) (int, error) {
	return c.send(nil, data, blocking)
}

// SendTo is Send with a destination override for connectionless
// transports.  With an empty ip and zero port it behaves exactly as
// Send, which makes it usable for TCP as well.
func (c Conn) SendTo(ip string, port int, data []byte, blocking bool) (int, error) {
	var dest *SendTo
	if ip != "" || port > 0 {
		dest = &SendTo{ip, port}
	}
	return c.send(dest, data, blocking)
}

func (c Conn) send(dest *SendTo, data []byte, blocking bool) (int, error) {
	if len(data) == 0 {
		return 0, errors.WithStack(InvalidArgumentError)
	}

	m := c.mgr
	if m == nil {
		return 0, errors.WithStack(StaleHandleError)
	}

	m.lock.Lock()
	s, err := m.slotOf(c)
	if err != nil {
		m.lock.Unlock()
		return 0, err
	}
	if !s.active || s.closing {
		m.lock.Unlock()
		return 0, errors.WithStack(ClosingError)
	}

	// Direct sends bypass coalescing, but any buffered bytes must go
	// out first to preserve stream order.
	if dest == nil && s.buf != nil {
		fit := m.segmentSize - len(s.buf.B)
		if fit > len(data) {
			fit = len(data)
		}
		if fit > 0 {
			s.buf.B = append(s.buf.B, data[:fit]...)
			data = data[fit:]
		}
	}
	ferr := m.handoffLocked(s)

	if len(data) == 0 {
		m.lock.Unlock()
		return 0, ferr
	}

	var sent int
	env := mbox.NewEnvelope(mbox.Send, s.index, s.gen).SetPayload(data)
	env.Sent = &sent
	if dest != nil {
		env.Body = *dest
	}
	m.lock.Unlock()

	if err := m.submit(env, blocking, m.sendTimeout); err != nil {
		return sent, err
	}
	return sent, nil
}
