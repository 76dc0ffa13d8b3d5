package mbox

import (
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"
	"github.com/valyala/bytebufferpool"
)

// The command kinds understood by the channel worker.
type Kind int

const (
	Start Kind = iota
	Send
	Close
	Status
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "Start"
	case Send:
		return "Send"
	case Close:
		return "Close"
	case Status:
		return "Status"
	}
	return fmt.Sprintf("Unknown(%v)", int(k))
}

// An envelope is one unit of work bound for the shared command channel.
// It is created by a caller-facing entry point, consumed exactly once by
// the channel worker and discarded after completion or failure.
//
// The index/generation pair stamps the target connection as it existed
// at submission time.  A processor must compare the stamp against the
// connection table before applying any effect: the connection may have
// been recycled while the envelope sat queued.
type Envelope struct {
	Id    uuid.UUID
	Kind  Kind
	Index int
	Gen   uint64

	// Bytes to transmit, if any.  When Owned is non-nil it backs
	// Payload and the stack allocated it; Free then instructs the
	// worker to return it to the allocator once processed.
	Payload []byte
	Owned   *bytebufferpool.ByteBuffer
	Free    bool

	// Output slot for the number of bytes actually transmitted.
	Sent *int

	// Kind-specific parameters, opaque to the mailbox.
	Body interface{}

	once sync.Once
	done chan error
}

func NewEnvelope(kind Kind, index int, gen uint64) *Envelope {
	return &Envelope{
		Id:    uuid.NewV1(),
		Kind:  kind,
		Index: index,
		Gen:   gen,
		done:  make(chan error, 1),
	}
}

// Attaches a stack-owned payload.  Ownership of the buffer moves with
// the envelope; the worker releases it after transmission.
func (e *Envelope) SetOwnedPayload(buf *bytebufferpool.ByteBuffer) *Envelope {
	e.Payload = buf.B
	e.Owned = buf
	e.Free = true
	return e
}

// Attaches a caller-owned payload.  The stack never copies or releases
// the bytes; they must remain untouched until the envelope completes.
func (e *Envelope) SetPayload(data []byte) *Envelope {
	e.Payload = data
	e.Owned = nil
	e.Free = false
	return e
}

// Resolves the envelope.  Only the first call has any effect.
func (e *Envelope) Complete(err error) {
	e.once.Do(func() {
		e.done <- err
	})
}

// The completion signal.  Receives exactly one value once the channel
// worker has finished with the envelope.
func (e *Envelope) Done() <-chan error {
	return e.done
}

func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope(%v, kind=%v, index=%v, gen=%v, len=%v)",
		e.Id, e.Kind, e.Index, e.Gen, len(e.Payload))
}
