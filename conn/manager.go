package conn

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/zbqxyz/GSM-AT-Lib/common"
	"github.com/zbqxyz/GSM-AT-Lib/mbox"
	"github.com/zbqxyz/GSM-AT-Lib/mem"
	"github.com/zbqxyz/GSM-AT-Lib/timeout"
)

// One entry of the connection table.  The slot is reused across
// connections; the generation is not.  Everything except index and the
// current generation is guarded by the manager lock.
type slot struct {
	index int
	gen   uint64

	active  bool
	client  bool
	closing bool

	typ        Type
	remoteIP   string
	remotePort int
	localPort  int

	totalReceived uint64

	// Pending coalescing buffer.  Non-nil only while a partially
	// filled segment is waiting for more data or a flush.
	buf *bytebufferpool.ByteBuffer

	arg     interface{}
	handler EventHandler
}

// Manager owns the connection table and the caller-facing surface of
// the stack.  All mutation of connection state happens under one lock,
// held only for field access and buffer handoff, never across a wait.
//
// The external AT front-end drives the lifecycle notifications
// (NotifyActive and friends) as it parses module responses.
type Manager struct {
	logger   common.Logger
	ctrl     common.Control
	pipeline mbox.Pipeline
	alloc    mem.Allocator
	timers   timeout.Scheduler
	handler  EventHandler

	segmentSize   int
	pollInterval  time.Duration
	startTimeout  time.Duration
	sendTimeout   time.Duration
	closeTimeout  time.Duration
	statusTimeout time.Duration

	lock  sync.Mutex
	slots []slot

	stats *stats
}

var _ io.Closer = (*Manager)(nil)

func NewManager(ctx common.Context, pipeline mbox.Pipeline, alloc mem.Allocator, timers timeout.Scheduler, def EventHandler) *Manager {
	config := ctx.Config()

	m := &Manager{
		logger:        common.FormatLogger(ctx.Logger(), "Conn"),
		ctrl:          ctx.Control().Sub(),
		pipeline:      pipeline,
		alloc:         alloc,
		timers:        timers,
		handler:       def,
		segmentSize:   config.OptionalInt(Config.SegmentSize, defaultSegmentSize),
		pollInterval:  config.OptionalDuration(Config.PollInterval, defaultPollInterval),
		startTimeout:  config.OptionalDuration(Config.StartTimeout, defaultStartTimeout),
		sendTimeout:   config.OptionalDuration(Config.SendTimeout, defaultSendTimeout),
		closeTimeout:  config.OptionalDuration(Config.CloseTimeout, defaultCloseTimeout),
		statusTimeout: config.OptionalDuration(Config.StatusTimeout, defaultStatusTimeout),
		slots:         make([]slot, config.OptionalInt(Config.MaxConns, defaultMaxConns)),
		stats:         newStats(),
	}

	for i := range m.slots {
		m.slots[i].index = i
	}

	return m
}

func (m *Manager) Close() error {
	return m.ctrl.Close()
}

// Submits a connection-open command.  The resulting handle is delivered
// asynchronously via an Active event once the module confirms; the
// return value only reflects acceptance of the command itself.
func (m *Manager) Start(typ Type, host string, port int, arg interface{}, handler EventHandler, blocking bool) error {
	if host == "" || port <= 0 || handler == nil {
		return errors.WithStack(InvalidArgumentError)
	}

	env := mbox.NewEnvelope(mbox.Start, -1, 0)
	env.Body = StartRequest{typ, host, port, arg, handler}
	return m.submit(env, blocking, m.startTimeout)
}

// Submits a status-query command to resynchronize the connection table
// against the module's view.
func (m *Manager) RefreshStatus(blocking bool) error {
	env := mbox.NewEnvelope(mbox.Status, -1, 0)
	return m.submit(env, blocking, m.statusTimeout)
}

// Called by the front-end when the module reports a connection open on
// the given slot.  Advances the slot's generation, stamping out any
// handles from the previous occupant, then emits the Active event and
// starts the poll chain.
func (m *Manager) NotifyActive(index int, client bool, typ Type, remoteIP string, remotePort int, localPort int, arg interface{}, handler EventHandler) (Conn, error) {
	if index < 0 || index >= len(m.slots) {
		return Conn{}, errors.WithStack(InvalidArgumentError)
	}

	m.lock.Lock()
	s := &m.slots[index]
	if s.buf != nil {
		m.alloc.Free(s.buf)
		s.buf = nil
	}

	s.gen++
	s.active = true
	s.client = client
	s.closing = false
	s.typ = typ
	s.remoteIP = remoteIP
	s.remotePort = remotePort
	s.localPort = localPort
	s.totalReceived = 0
	s.arg = arg
	s.handler = handler
	gen := s.gen
	m.lock.Unlock()

	m.stats.activations.Inc(1)
	m.logger.Debug("Connection %v active, generation %v", index, gen)

	c := Conn{m, index, gen}
	m.dispatch(handler, Event{Type: EventActive, Conn: c})
	m.schedulePoll(index, gen)
	return c, nil
}

// Called by the front-end when the module reports a connection closed,
// whether in response to a close command or unsolicited.  Releases any
// pending buffer and emits the Closed event.  Closure of an already
// inactive slot is ignored.
func (m *Manager) NotifyClosed(index int) error {
	if index < 0 || index >= len(m.slots) {
		return errors.WithStack(InvalidArgumentError)
	}

	m.lock.Lock()
	s := &m.slots[index]
	if !s.active {
		m.lock.Unlock()
		m.logger.Debug("Ignoring closure of inactive connection %v", index)
		return nil
	}

	s.active = false
	s.closing = false
	if s.buf != nil {
		m.alloc.Free(s.buf)
		s.buf = nil
	}
	gen := s.gen
	handler := s.handler
	m.lock.Unlock()

	m.stats.closures.Inc(1)
	m.logger.Debug("Connection %v closed", index)

	m.dispatch(handler, Event{Type: EventClosed, Conn: Conn{m, index, gen}})
	return nil
}

// Called by the front-end with data the module delivered for the given
// slot.  Feeds the receive counter and emits the DataReceived event.
func (m *Manager) NotifyReceived(index int, data []byte) error {
	if index < 0 || index >= len(m.slots) {
		return errors.WithStack(InvalidArgumentError)
	}

	m.lock.Lock()
	s := &m.slots[index]
	if !s.active {
		m.lock.Unlock()
		return errors.WithStack(ClosingError)
	}

	s.totalReceived += uint64(len(data))
	gen := s.gen
	handler := s.handler
	m.lock.Unlock()

	m.stats.bytesReceived.Inc(int64(len(data)))
	m.dispatch(handler, Event{Type: EventDataReceived, Conn: Conn{m, index, gen}, Data: data})
	return nil
}

// Called by the front-end once a send command completes on the wire.
func (m *Manager) NotifySent(index int, sent int) error {
	if index < 0 || index >= len(m.slots) {
		return errors.WithStack(InvalidArgumentError)
	}

	m.lock.Lock()
	s := &m.slots[index]
	gen := s.gen
	handler := s.handler
	m.lock.Unlock()

	m.dispatch(handler, Event{Type: EventDataSent, Conn: Conn{m, index, gen}, Sent: sent})
	return nil
}

// Resolves a handle against the table.  Must be called with the lock
// held.  Fails when the handle quotes an out-of-bounds index or a
// generation the slot has since moved past.
func (m *Manager) slotOf(c Conn) (*slot, error) {
	if c.mgr != m || c.index < 0 || c.index >= len(m.slots) {
		m.stats.staleRejections.Inc(1)
		return nil, errors.WithStack(StaleHandleError)
	}

	s := &m.slots[c.index]
	if s.gen != c.gen {
		m.stats.staleRejections.Inc(1)
		return nil, errors.WithStack(StaleHandleError)
	}

	return s, nil
}

// The single command-submission path.  Non-blocking submissions return
// as soon as the pipeline accepts the envelope.  Blocking submissions
// additionally wait for completion, up to the command's deadline; the
// envelope itself cannot be withdrawn once accepted.
func (m *Manager) submit(env *mbox.Envelope, blocking bool, deadline time.Duration) error {
	if m.ctrl.IsClosed() {
		return errors.WithStack(ClosedError)
	}

	if err := m.pipeline.Enqueue(env); err != nil {
		return errors.Wrapf(SubmitError, "pipeline rejected %v: %v", env, err)
	}

	if !blocking {
		return nil
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case <-m.ctrl.Closed():
		return errors.WithStack(ClosedError)
	case <-timer.C:
		m.stats.timeouts.Inc(1)
		return errors.WithStack(TimeoutError)
	case err := <-env.Done():
		return err
	}
}

func (m *Manager) dispatch(handler EventHandler, evt Event) {
	if handler == nil {
		handler = m.handler
	}
	if handler == nil {
		return
	}
	handler.HandleEvent(evt)
}
