package cpuprotocol

// compactThreshold is the number of consumed bytes after which the inbox
// moves its unread tail to the front of the buffer.
const compactThreshold = 4096

// inbox holds bytes received from the server that have not been decoded
// into a complete frame yet. Consumed bytes are skipped with a cursor
// instead of being shifted out one at a time.
type inbox struct {
	b []byte // received data
	h int    // head: first unread byte
}

// append queues received bytes.
func (q *inbox) append(p []byte) {
	if q.h == len(q.b) {
		// everything was consumed; reuse the buffer from the start:
		q.b = q.b[:0]
		q.h = 0
	}
	q.b = append(q.b, p...)
}

// len returns the number of unread bytes.
func (q *inbox) len() int {
	return len(q.b) - q.h
}

// bytes returns the unread bytes. The slice is only valid until the next
// append or consume.
func (q *inbox) bytes() []byte {
	return q.b[q.h:]
}

// consume drops n unread bytes from the front of the queue.
func (q *inbox) consume(n int) {
	if n > q.len() {
		n = q.len()
	}
	q.h += n

	if q.h == len(q.b) {
		q.b = q.b[:0]
		q.h = 0
		return
	}

	// remaining bytes begin the next frame:
	if q.h >= compactThreshold && q.h*2 >= len(q.b) {
		n := copy(q.b, q.b[q.h:])
		q.b = q.b[:n]
		q.h = 0
	}
}
