package mbox

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/zbqxyz/GSM-AT-Lib/common"
	"github.com/zbqxyz/GSM-AT-Lib/mem"
)

func TestMbox_ProcessesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := common.NewContext(common.NewEmptyConfig())
	defer ctx.Close()

	var lock sync.Mutex
	var seen []Kind

	m := New(ctx, mem.NewPoolAllocator(), ProcessorFunc(func(env *Envelope) error {
		lock.Lock()
		seen = append(seen, env.Kind)
		lock.Unlock()
		return nil
	}))
	defer m.Close()

	first := NewEnvelope(Start, -1, 0)
	second := NewEnvelope(Send, 0, 1)
	third := NewEnvelope(Close, 0, 1)

	assert.Nil(t, m.Enqueue(first))
	assert.Nil(t, m.Enqueue(second))
	assert.Nil(t, m.Enqueue(third))

	assert.Nil(t, <-first.Done())
	assert.Nil(t, <-second.Done())
	assert.Nil(t, <-third.Done())

	lock.Lock()
	defer lock.Unlock()
	assert.Equal(t, []Kind{Start, Send, Close}, seen)
}

func TestMbox_RejectsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := common.NewContext(
		common.NewConfig(map[string]interface{}{"gsm.mbox.capacity": 1}))
	defer ctx.Close()

	release := make(chan struct{})
	m := New(ctx, mem.NewPoolAllocator(), ProcessorFunc(func(env *Envelope) error {
		<-release
		return nil
	}))
	defer m.Close()
	defer close(release)

	// The first envelope may be pulled by the worker immediately, so
	// fill until the queue itself reports full.
	var err error
	for i := 0; i < 3; i++ {
		err = m.Enqueue(NewEnvelope(Status, -1, 0))
		if err != nil {
			break
		}
	}

	assert.Equal(t, FullError, errors.Cause(err))
}

func TestMbox_CompletesWithProcessorError(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := common.NewContext(common.NewEmptyConfig())
	defer ctx.Close()

	boom := errors.New("wire error")
	m := New(ctx, mem.NewPoolAllocator(), ProcessorFunc(func(env *Envelope) error {
		return boom
	}))
	defer m.Close()

	env := NewEnvelope(Send, 0, 1)
	assert.Nil(t, m.Enqueue(env))
	assert.Equal(t, boom, <-env.Done())
}

func TestMbox_FreesOwnedPayload(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := common.NewContext(common.NewEmptyConfig())
	defer ctx.Close()

	alloc := mem.NewPoolAllocator()
	m := New(ctx, alloc, ProcessorFunc(func(env *Envelope) error {
		return nil
	}))
	defer m.Close()

	buf, err := alloc.Alloc(32)
	assert.Nil(t, err)
	buf.B = append(buf.B, []byte("payload")...)

	env := NewEnvelope(Send, 0, 1).SetOwnedPayload(buf)
	assert.Nil(t, m.Enqueue(env))
	assert.Nil(t, <-env.Done())
	assert.Nil(t, env.Owned)
}

func TestMbox_EnqueueAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := common.NewContext(common.NewEmptyConfig())
	defer ctx.Close()

	m := New(ctx, mem.NewPoolAllocator(), ProcessorFunc(func(env *Envelope) error {
		return nil
	}))
	assert.Nil(t, m.Close())

	// closing and disposing race, so allow either rejection path
	err := m.Enqueue(NewEnvelope(Status, -1, 0))
	assert.Equal(t, ClosedError, errors.Cause(err))

	// give the worker a moment to drain out
	time.Sleep(10 * time.Millisecond)
}
