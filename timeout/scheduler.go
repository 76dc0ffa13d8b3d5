package timeout

import (
	"io"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/zbqxyz/GSM-AT-Lib/common"
)

var (
	ClosedError = errors.New("Timeout:ClosedError")
)

// Scheduler is the one-shot timer facility used by the connection core.
// Callbacks are invoked from a single internal goroutine, strictly in
// deadline order.  Callbacks must not block; anything expensive belongs
// on another goroutine.
//
// There is no cancellation.  A callback that must not act after some
// state change is expected to re-check that state when it fires.
type Scheduler interface {
	io.Closer
	ScheduleOnce(delay time.Duration, fn func()) error
}

type scheduler struct {
	logger common.Logger
	ctrl   common.Control

	lock    sync.Mutex
	entries *treemap.Map // deadline (unix nanos) -> []func()
	wake    chan struct{}

	fired metrics.Counter
}

func NewScheduler(ctx common.Context) Scheduler {
	s := &scheduler{
		logger:  common.FormatLogger(ctx.Logger(), "Timeout"),
		ctrl:    ctx.Control().Sub(),
		entries: treemap.NewWith(utils.Int64Comparator),
		wake:    make(chan struct{}, 1),
		fired: metrics.NewRegisteredCounter(
			"gsm.timeout.Fired", metrics.DefaultRegistry),
	}

	go s.run()
	return s
}

func (s *scheduler) Close() error {
	return s.ctrl.Close()
}

func (s *scheduler) ScheduleOnce(delay time.Duration, fn func()) error {
	if s.ctrl.IsClosed() {
		return errors.WithStack(ClosedError)
	}

	deadline := time.Now().Add(delay).UnixNano()

	s.lock.Lock()
	var fns []func()
	if cur, ok := s.entries.Get(deadline); ok {
		fns = cur.([]func())
	}
	s.entries.Put(deadline, append(fns, fn))
	s.lock.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		due, wait := s.next()
		for _, fn := range due {
			s.fired.Inc(1)
			fn()
		}

		if wait < 0 {
			select {
			case <-s.ctrl.Closed():
				return
			case <-s.wake:
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.ctrl.Closed():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// Pops every entry whose deadline has passed and reports how long to
// sleep until the next one.  A negative wait means the table is empty.
func (s *scheduler) next() ([]func(), time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := time.Now().UnixNano()

	var due []func()
	for {
		key, val := s.entries.Min()
		if key == nil {
			return due, -1
		}

		deadline := key.(int64)
		if deadline > now {
			return due, time.Duration(deadline - now)
		}

		due = append(due, val.([]func())...)
		s.entries.Remove(key)
	}
}
