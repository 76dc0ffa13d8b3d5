// Package conn manages the logical network connections multiplexed over
// a modem's shared AT command channel.
//
// The command channel is half duplex and strictly serialized: one
// command is outstanding at a time, for the entire module.  Many
// connections may nevertheless be open concurrently from the caller's
// point of view.  This package reconciles the two by coalescing small
// writes into channel-sized segments, funnelling every lifecycle and
// data command through a single ordered pipeline, and stamping each
// caller-held handle with a generation so that operations against a
// recycled slot are rejected rather than misapplied.
//
// The AT front-end itself (command text, response parsing) lives behind
// the mbox.Processor interface and is not part of this package.
package conn

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	InvalidArgumentError = errors.New("Conn:InvalidArgumentError")
	StaleHandleError     = errors.New("Conn:StaleHandleError")
	ClosingError         = errors.New("Conn:ClosingError")
	OutOfMemoryError     = errors.New("Conn:OutOfMemoryError")
	SubmitError          = errors.New("Conn:SubmitError")
	TimeoutError         = errors.New("Conn:TimeoutError")
	ClosedError          = errors.New("Conn:ClosedError")
)

// The transport flavor of a connection.
type Type int

const (
	TCP Type = iota
	UDP
)

func (t Type) String() string {
	switch t {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	}
	return fmt.Sprintf("Unknown(%v)", int(t))
}

type EventType int

const (
	EventActive EventType = iota
	EventClosed
	EventDataReceived
	EventDataSent
	EventPoll
	EventError
)

func (e EventType) String() string {
	switch e {
	case EventActive:
		return "Active"
	case EventClosed:
		return "Closed"
	case EventDataReceived:
		return "DataReceived"
	case EventDataSent:
		return "DataSent"
	case EventPoll:
		return "Poll"
	case EventError:
		return "Error"
	}
	return fmt.Sprintf("Unknown(%v)", int(e))
}

// An event describes an asynchronous outcome on a connection: it became
// active, it closed, data arrived or was transmitted, or its periodic
// poll fired.  Events are delivered to the connection's handler when one
// was registered, falling back to the manager-wide default otherwise.
type Event struct {
	Type EventType
	Conn Conn

	// Bytes received, for DataReceived.  Valid only for the duration
	// of the callback.
	Data []byte

	// Bytes transmitted, for DataSent.
	Sent int

	Err error
}

func (e Event) String() string {
	return fmt.Sprintf("Event(%v, conn=%v)", e.Type, e.Conn.index)
}

type EventHandler interface {
	HandleEvent(Event)
}

type EventHandlerFunc func(Event)

func (fn EventHandlerFunc) HandleEvent(evt Event) { fn(evt) }

// Parameters of a connection-open command, carried as the envelope body
// for the AT front-end to act on.
type StartRequest struct {
	Type    Type
	Host    string
	Port    int
	Arg     interface{}
	Handler EventHandler
}

// Destination override for a connectionless send, carried as the
// envelope body.
type SendTo struct {
	RemoteIP   string
	RemotePort int
}
