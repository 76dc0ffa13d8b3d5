package conn

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/zbqxyz/GSM-AT-Lib/common"
	"github.com/zbqxyz/GSM-AT-Lib/mbox"
	"github.com/zbqxyz/GSM-AT-Lib/mem"
	"github.com/zbqxyz/GSM-AT-Lib/timeout"
)

// A pipeline stand-in that records every accepted envelope.  Accepted
// envelopes are completed immediately (optionally reporting the payload
// length as sent), which makes blocking submissions return right away.
type fakePipeline struct {
	lock        sync.Mutex
	envs        []*mbox.Envelope
	rejectAll   bool
	rejectSends bool
	stall       bool // accept but never complete
}

func (p *fakePipeline) Enqueue(env *mbox.Envelope) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.rejectAll || (p.rejectSends && env.Kind == mbox.Send) {
		return errors.WithStack(mbox.FullError)
	}

	p.envs = append(p.envs, env)
	if !p.stall {
		if env.Sent != nil {
			*env.Sent = len(env.Payload)
		}
		env.Complete(nil)
	}
	return nil
}

func (p *fakePipeline) count() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.envs)
}

func (p *fakePipeline) kinds() []mbox.Kind {
	p.lock.Lock()
	defer p.lock.Unlock()

	out := make([]mbox.Kind, 0, len(p.envs))
	for _, env := range p.envs {
		out = append(out, env.Kind)
	}
	return out
}

func (p *fakePipeline) lengths() []int {
	p.lock.Lock()
	defer p.lock.Unlock()

	out := make([]int, 0, len(p.envs))
	for _, env := range p.envs {
		out = append(out, len(env.Payload))
	}
	return out
}

func (p *fakePipeline) at(i int) *mbox.Envelope {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.envs[i]
}

// Collects events delivered on a connection.
type eventRecorder struct {
	lock   sync.Mutex
	events []Event
}

func (r *eventRecorder) HandleEvent(evt Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) byType(t EventType) []Event {
	r.lock.Lock()
	defer r.lock.Unlock()

	var out []Event
	for _, evt := range r.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (r *eventRecorder) countOf(t EventType) int {
	return len(r.byType(t))
}

func (r *eventRecorder) waitFor(t *testing.T, typ EventType, n int) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.countOf(typ) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never saw %v events of type %v", n, typ)
}

type testEnv struct {
	ctx      common.Context
	pipeline *fakePipeline
	alloc    mem.Allocator
	mgr      *Manager
}

func (e *testEnv) Close() {
	e.mgr.Close()
	e.ctx.Close()
}

// Builds a manager against the fake pipeline.  Overrides merge over a
// baseline of a 20-byte segment and an effectively disabled poll chain,
// so tests that don't care about polling aren't disturbed by it.
func newTestEnv(overrides map[string]interface{}) *testEnv {
	config := map[string]interface{}{
		Config.SegmentSize:  20,
		Config.PollInterval: 60 * 60 * 1000,
	}
	for k, v := range overrides {
		config[k] = v
	}

	ctx := common.NewContext(common.NewConfig(config))
	pipeline := &fakePipeline{}
	alloc := mem.NewPoolAllocator()

	return &testEnv{
		ctx:      ctx,
		pipeline: pipeline,
		alloc:    alloc,
		mgr:      NewManager(ctx, pipeline, alloc, timeout.NewScheduler(ctx), nil),
	}
}

func (e *testEnv) activate(index int) Conn {
	c, err := e.mgr.NotifyActive(index, true, TCP, "10.0.0.1", 80, 5000, nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}
