package mbox

import (
	"io"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/zbqxyz/GSM-AT-Lib/common"
	"github.com/zbqxyz/GSM-AT-Lib/mem"
)

const (
	confMboxCapacity = "gsm.mbox.capacity"
)

const (
	defaultMboxCapacity = 16
)

var (
	ClosedError = errors.New("Mbox:ClosedError")
	FullError   = errors.New("Mbox:FullError")
)

// Pipeline is the submission half of the command channel.  Enqueue
// either accepts the envelope (nil) or rejects it synchronously.  An
// accepted envelope will eventually be completed by the worker; a
// rejected one never will.
type Pipeline interface {
	Enqueue(*Envelope) error
}

// Processor turns an accepted envelope into traffic on the wire and
// parses the module's response.  It runs on the single worker goroutine,
// one envelope at a time, strictly in submission order.
type Processor interface {
	Process(*Envelope) error
}

type ProcessorFunc func(*Envelope) error

func (fn ProcessorFunc) Process(env *Envelope) error { return fn(env) }

// Mbox is the single-consumer mailbox in front of the command channel.
// All commands, regardless of originating connection, pass through here
// and are handed to the processor one at a time.
//
// The queue is bounded; a full queue rejects rather than blocks, so the
// caller-facing entry points stay non-blocking.
type Mbox struct {
	logger common.Logger
	ctrl   common.Control
	alloc  mem.Allocator
	proc   Processor
	queue  *queue.RingBuffer

	accepted  metrics.Counter
	rejected  metrics.Counter
	processed metrics.Counter
}

var _ Pipeline = (*Mbox)(nil)
var _ io.Closer = (*Mbox)(nil)

func New(ctx common.Context, alloc mem.Allocator, proc Processor) *Mbox {
	capacity := ctx.Config().OptionalInt(confMboxCapacity, defaultMboxCapacity)

	r := metrics.DefaultRegistry
	m := &Mbox{
		logger:    common.FormatLogger(ctx.Logger(), "Mbox"),
		ctrl:      ctx.Control().Sub(),
		alloc:     alloc,
		proc:      proc,
		queue:     queue.NewRingBuffer(uint64(capacity)),
		accepted:  metrics.NewRegisteredCounter("gsm.mbox.Accepted", r),
		rejected:  metrics.NewRegisteredCounter("gsm.mbox.Rejected", r),
		processed: metrics.NewRegisteredCounter("gsm.mbox.Processed", r),
	}

	go m.run()
	go func() {
		<-m.ctrl.Closed()
		m.queue.Dispose()
	}()

	return m
}

func (m *Mbox) Close() error {
	return m.ctrl.Close()
}

func (m *Mbox) Enqueue(env *Envelope) error {
	if m.ctrl.IsClosed() {
		return errors.WithStack(ClosedError)
	}

	ok, err := m.queue.Offer(env)
	if err != nil {
		return errors.WithStack(ClosedError)
	}
	if !ok {
		m.rejected.Inc(1)
		return errors.WithStack(FullError)
	}

	m.accepted.Inc(1)
	return nil
}

func (m *Mbox) run() {
	for {
		val, err := m.queue.Get()
		if err != nil {
			return
		}

		env := val.(*Envelope)
		res := m.proc.Process(env)

		// The worker owns the payload from here on, success or not.
		if env.Owned != nil && env.Free {
			m.alloc.Free(env.Owned)
			env.Owned = nil
			env.Payload = nil
		}

		if res != nil {
			m.logger.Debug("Command failed [%v]: %v", env, res)
		}

		env.Complete(res)
		m.processed.Inc(1)
	}
}
