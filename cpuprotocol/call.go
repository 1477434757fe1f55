package cpuprotocol

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

const (
	callPending int32 = iota
	callSettled
	callExpired
)

// Call is an in-flight command. It settles exactly once: with the decoded
// reply payload, with a *CommandError when the server answers FAIL or the
// command timeout fires, or with an abort error when the connection goes
// away.
//
// A call that timed out keeps its place in the reply queue, so that the
// reply the server eventually sends is still consumed with the right
// layout. That late reply is logged and dropped.
type Call struct {
	Command Command

	state  atomic.Int32
	fields Fields
	err    error
	done   chan struct{}
	timer  *time.Timer
}

func newCall(cmd Command) *Call {
	return &Call{Command: cmd, done: make(chan struct{})}
}

// failedCall returns a call that is already settled with err.
func failedCall(cmd Command, err error) *Call {
	c := newCall(cmd)
	c.settle(nil, err)
	return c
}

// settle completes the call. It reports false if the call had already
// settled or expired.
func (c *Call) settle(fields Fields, err error) bool {
	if !c.state.CompareAndSwap(callPending, callSettled) {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.fields, c.err = fields, err
	close(c.done)
	return true
}

// expire fails the call with a timeout error. It reports false if the call
// had already settled.
func (c *Call) expire() bool {
	if !c.state.CompareAndSwap(callPending, callExpired) {
		return false
	}
	c.err = &CommandError{Kind: ErrKindTimeout, Command: c.Command}
	close(c.done)
	return true
}

// Done returns a channel that is closed when the call settles.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Expired reports whether the call timed out before its reply arrived.
func (c *Call) Expired() bool {
	return c.state.Load() == callExpired
}

// Result blocks until the call settles and returns its outcome.
func (c *Call) Result() (Fields, error) {
	<-c.done
	return c.fields, c.err
}

// Wait blocks until the call settles or ctx is done. Giving up through ctx
// does not remove the call from the reply queue.
func (c *Call) Wait(ctx context.Context) (Fields, error) {
	select {
	case <-c.done:
		return c.fields, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitAll waits for every call and returns the errors joined together.
// It always waits for all calls, even after one fails.
func WaitAll(ctx context.Context, calls ...*Call) error {
	var errs []error
	for _, c := range calls {
		if _, err := c.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
