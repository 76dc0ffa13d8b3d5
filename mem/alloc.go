package mem

import (
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

var (
	ExhaustedError = errors.New("Mem:ExhaustedError")
)

// Allocator is the buffer facility used by the connection core.  Buffers
// are uniquely owned: whoever holds the reference is responsible for
// eventually returning it via Free.  Handing a buffer to another
// component transfers that responsibility.
//
// Alloc returns a buffer whose backing array holds at least size bytes
// and whose length has been reset to zero.
type Allocator interface {
	Alloc(size int) (*bytebufferpool.ByteBuffer, error)
	Free(*bytebufferpool.ByteBuffer)
}

// The default allocator draws from a shared byte buffer pool and never
// fails.  Fallible allocators exist for exercising exhaustion paths.
func NewPoolAllocator() Allocator {
	return &poolAllocator{}
}

type poolAllocator struct {
}

func (p *poolAllocator) Alloc(size int) (*bytebufferpool.ByteBuffer, error) {
	buf := bytebufferpool.Get()
	if cap(buf.B) < size {
		buf.B = make([]byte, 0, size)
	} else {
		buf.B = buf.B[:0]
	}
	return buf, nil
}

func (p *poolAllocator) Free(buf *bytebufferpool.ByteBuffer) {
	if buf == nil {
		return
	}
	bytebufferpool.Put(buf)
}

// Fails after the given number of allocations have been served.  Used in
// tests to verify the core's out-of-memory behavior.
func NewLimitAllocator(limit int) Allocator {
	return &limitAllocator{inner: NewPoolAllocator(), remaining: limit}
}

type limitAllocator struct {
	inner     Allocator
	remaining int
}

func (l *limitAllocator) Alloc(size int) (*bytebufferpool.ByteBuffer, error) {
	if l.remaining <= 0 {
		return nil, errors.WithStack(ExhaustedError)
	}

	l.remaining--
	return l.inner.Alloc(size)
}

func (l *limitAllocator) Free(buf *bytebufferpool.ByteBuffer) {
	l.inner.Free(buf)
}
