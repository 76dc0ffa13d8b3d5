package conn

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/zbqxyz/GSM-AT-Lib/mbox"
)

func TestClose_NonBlocking(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)
	assert.Nil(t, c.Close(false))

	assert.Equal(t, []mbox.Kind{mbox.Close}, env.pipeline.kinds())

	// The closing flag is set immediately in non-blocking mode, so the
	// connection still reads as active but refuses new writes.
	assert.True(t, c.IsActive())
	_, err := c.Write([]byte("x"), false)
	assert.Equal(t, ClosingError, errors.Cause(err))
}

func TestClose_AlreadyClosing(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)
	assert.Nil(t, c.Close(false))

	err := c.Close(false)
	assert.Equal(t, ClosingError, errors.Cause(err))
	assert.Equal(t, 1, env.pipeline.count())
}

func TestClose_Inactive(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)
	assert.Nil(t, env.mgr.NotifyClosed(0))

	err := c.Close(false)
	assert.Equal(t, ClosingError, errors.Cause(err))
	assert.Zero(t, env.pipeline.count())
}

func TestClose_FlushesPendingBufferFirst(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)

	_, err := c.Write([]byte("tail"), false)
	assert.Nil(t, err)

	assert.Nil(t, c.Close(false))

	// Exactly one send of the pending 4 bytes, then the close.
	assert.Equal(t, []mbox.Kind{mbox.Send, mbox.Close}, env.pipeline.kinds())
	assert.Equal(t, []int{4, 0}, env.pipeline.lengths())
}

func TestClose_FlushFailureDoesNotBlockClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)

	_, err := c.Write([]byte("tail"), false)
	assert.Nil(t, err)

	// The flush is rejected (buffer freed, never leaked) but the close
	// itself still goes through.
	env.pipeline.rejectSends = true
	assert.Nil(t, c.Close(false))
	assert.Equal(t, []mbox.Kind{mbox.Close}, env.pipeline.kinds())
}

func TestClose_Blocking(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)
	assert.Nil(t, c.Close(true))

	// In blocking mode the closing flag is left to the completion
	// handler; the connection accepts writes until the module's
	// closure notice lands.
	_, err := c.Write([]byte("still open"), false)
	assert.Nil(t, err)

	assert.Nil(t, env.mgr.NotifyClosed(0))
	assert.True(t, c.IsClosed())
}

func TestClose_BlockingTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(map[string]interface{}{Config.CloseTimeout: 10})
	defer env.Close()

	env.pipeline.stall = true

	c := env.activate(0)
	err := c.Close(true)
	assert.Equal(t, TimeoutError, errors.Cause(err))
}

func TestClose_StaleHandle(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(nil)
	defer env.Close()

	c := env.activate(0)
	assert.Nil(t, env.mgr.NotifyClosed(0))
	env.activate(0)

	err := c.Close(false)
	assert.Equal(t, StaleHandleError, errors.Cause(err))
}
