package common

import (
	"io"
	"sync"
)

// Control is the close/fail propagation primitive shared by all
// long-lived components.  Closing a parent closes every child derived
// via Sub.  Fail records the first cause; later calls are no-ops.
type Control interface {
	io.Closer
	Fail(error)
	Closed() <-chan struct{}
	IsClosed() bool
	Failure() error
	Sub() Control
}

type control struct {
	lock    sync.Mutex
	closed  chan struct{}
	done    bool
	failure error
}

func NewControl(parent Control) Control {
	c := &control{closed: make(chan struct{})}

	if parent != nil {
		go func() {
			select {
			case <-parent.Closed():
				c.Fail(parent.Failure())
			case <-c.closed:
			}
		}()
	}

	return c
}

func NewRootControl() Control {
	return NewControl(nil)
}

func (c *control) Fail(cause error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.done {
		return
	}

	c.done = true
	c.failure = cause
	close(c.closed)
}

func (c *control) Close() error {
	c.Fail(nil)
	return c.Failure()
}

func (c *control) Closed() <-chan struct{} {
	return c.closed
}

func (c *control) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *control) Failure() error {
	<-c.closed
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.failure
}

func (c *control) Sub() Control {
	return NewControl(c)
}
