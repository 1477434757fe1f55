package cpuprotocol

import (
	"log"
	"sync"
	"time"
)

// pendingQueue is the view of the response correlator used by the decoder.
type pendingQueue interface {
	// frontLayout returns the reply layout of the oldest outstanding
	// command. The second result is false if nothing is outstanding.
	frontLayout() (Layout, bool)
	// resolveFront pops the oldest outstanding command and completes it.
	resolveFront(fields Fields)
	// failFront pops the oldest outstanding command and fails it.
	failFront()
}

// correlator matches ACK and FAIL replies to outstanding commands. The
// server answers in send order, so a reply always belongs to the front of
// the queue.
type correlator struct {
	mu      sync.Mutex
	queue   []*Call
	closed  error // once set, new calls fail with it
	timeout time.Duration
	logger  *log.Logger
}

func newCorrelator(timeout time.Duration, logger *log.Logger) *correlator {
	return &correlator{timeout: timeout, logger: logger}
}

// push appends a call for cmd to the back of the queue and arms its
// timeout. The caller must write the command to the wire before any other
// command is pushed.
func (r *correlator) push(cmd Command) *Call {
	call := newCall(cmd)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed != nil {
		call.settle(nil, &CommandError{Kind: ErrKindAborted, Command: cmd, Cause: r.closed})
		return call
	}
	if r.timeout > 0 {
		call.timer = time.AfterFunc(r.timeout, func() { call.expire() })
	}
	r.queue = append(r.queue, call)
	return call
}

// remove takes a call out of the queue without settling it. Used when the
// command could not be written.
func (r *correlator) remove(call *Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.queue {
		if c == call {
			copy(r.queue[i:], r.queue[i+1:])
			r.queue[len(r.queue)-1] = nil
			r.queue = r.queue[:len(r.queue)-1]
			return
		}
	}
}

// pending returns the number of outstanding commands, expired ones included.
func (r *correlator) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *correlator) frontLayout() (Layout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	return r.queue[0].Command.Reply, true
}

func (r *correlator) pop() *Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	call := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return call
}

func (r *correlator) resolveFront(fields Fields) {
	call := r.pop()
	if call == nil {
		r.logger.Printf("Got ACK but there are no requests...?")
		return
	}
	if !call.settle(fields, nil) {
		r.logger.Printf("Response arrived too late (command: %s). status=ok, data=%s",
			call.Command.Op, fields.Format())
	}
}

func (r *correlator) failFront() {
	call := r.pop()
	if call == nil {
		r.logger.Printf("Got FAIL but there are no requests...?")
		return
	}
	if !call.settle(nil, &CommandError{Kind: ErrKindFailed, Command: call.Command}) {
		r.logger.Printf("Response arrived too late (command: %s). status=error", call.Command.Op)
	}
}

// abortAll fails every outstanding call with cause and makes later pushes
// fail immediately.
func (r *correlator) abortAll(cause error) {
	r.mu.Lock()
	queue := r.queue
	r.queue = nil
	if r.closed == nil {
		r.closed = cause
	}
	r.mu.Unlock()

	for _, call := range queue {
		call.settle(nil, &CommandError{Kind: ErrKindAborted, Command: call.Command, Cause: cause})
	}
}
