package cpuprotocol

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCorrelator(timeout time.Duration) (*correlator, *bytes.Buffer) {
	var logs bytes.Buffer
	return newCorrelator(timeout, log.New(&logs, "", 0)), &logs
}

func TestCorrelatorFIFO(t *testing.T) {
	r, _ := newTestCorrelator(0)

	a := r.push(NewReadDregCommand(0))
	b := r.push(NewReadDregCommand(1))
	c := r.push(NewTickCommand())
	require.Equal(t, 3, r.pending())

	layout, ok := r.frontLayout()
	require.True(t, ok)
	assert.Equal(t, LayoutLong, layout)

	r.resolveFront(Fields{{Kind: FieldLong, Num: 1}})
	r.failFront()
	r.resolveFront(Fields{})

	f, err := a.Result()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.Long(0))

	_, err = b.Result()
	assert.ErrorIs(t, err, ErrCommandFailed)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, ErrKindFailed, cmdErr.Kind)
	assert.Equal(t, OpReadDreg, cmdErr.Command.Op)

	_, err = c.Result()
	assert.NoError(t, err)
	assert.Zero(t, r.pending())
}

func TestCorrelatorTimeout(t *testing.T) {
	const timeout = 50 * time.Millisecond
	r, _ := newTestCorrelator(timeout)

	start := time.Now()
	call := r.push(NewTickCommand())

	_, err := call.Result()
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout, "timed out too early")
	assert.True(t, call.Expired())

	// The expired call keeps its slot so the late reply is framed with
	// its layout.
	assert.Equal(t, 1, r.pending())
}

func TestCorrelatorLateReply(t *testing.T) {
	r, logs := newTestCorrelator(0)

	late := r.push(NewReadPCCommand())
	next := r.push(NewReadSRCommand())
	require.True(t, late.expire())

	r.resolveFront(Fields{{Kind: FieldLong, Num: 0x400}})
	assert.Contains(t, logs.String(), "Response arrived too late (command: READ_PC). status=ok, data=[0x400]")

	// The late reply does not change the outcome of the expired call.
	_, err := late.Result()
	assert.ErrorIs(t, err, ErrTimeout)

	// The next reply goes to the next call.
	layout, ok := r.frontLayout()
	require.True(t, ok)
	assert.Equal(t, LayoutWord, layout)
	r.resolveFront(Fields{{Kind: FieldWord, Num: 0x2700}})

	f, err := next.Result()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2700), f.Word(0))
}

func TestCorrelatorLateFail(t *testing.T) {
	r, logs := newTestCorrelator(10 * time.Millisecond)

	call := r.push(NewTickCommand())
	<-call.Done()
	r.failFront()

	assert.Contains(t, logs.String(), "Response arrived too late (command: TICK). status=error")
}

func TestCorrelatorExpiresOnce(t *testing.T) {
	r, _ := newTestCorrelator(0)
	call := r.push(NewTickCommand())

	assert.True(t, call.expire())
	assert.False(t, call.expire())
	assert.False(t, call.settle(nil, nil))
}

func TestCorrelatorSettledCallDoesNotExpire(t *testing.T) {
	r, _ := newTestCorrelator(20 * time.Millisecond)
	call := r.push(NewTickCommand())
	r.resolveFront(Fields{})

	time.Sleep(40 * time.Millisecond)
	_, err := call.Result()
	assert.NoError(t, err)
	assert.False(t, call.Expired())
}

func TestCorrelatorAbortAll(t *testing.T) {
	r, _ := newTestCorrelator(0)

	a := r.push(NewTickCommand())
	b := r.push(NewReadPCCommand())
	r.abortAll(ErrConnectionClosed)

	for _, call := range []*Call{a, b} {
		_, err := call.Result()
		assert.ErrorIs(t, err, ErrConnectionClosed)
	}
	assert.Zero(t, r.pending())

	// Pushing after the abort fails right away.
	c := r.push(NewTickCommand())
	_, err := c.Result()
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Zero(t, r.pending())
}

func TestCorrelatorRemove(t *testing.T) {
	r, _ := newTestCorrelator(0)

	a := r.push(NewTickCommand())
	b := r.push(NewReadPCCommand())
	r.remove(a)

	layout, ok := r.frontLayout()
	require.True(t, ok)
	assert.Equal(t, LayoutLong, layout)
	r.resolveFront(Fields{{Kind: FieldLong, Num: 2}})

	f, err := b.Result()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), f.Long(0))
}

func TestWaitAll(t *testing.T) {
	r, _ := newTestCorrelator(0)

	a := r.push(NewTickCommand())
	b := r.push(NewTickCommand())
	r.resolveFront(Fields{})
	r.failFront()

	err := WaitAll(context.Background(), a, b)
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestCallWaitContext(t *testing.T) {
	r, _ := newTestCorrelator(0)
	call := r.push(NewTickCommand())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := call.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, r.pending(), "giving up on a call must keep its slot")
}
