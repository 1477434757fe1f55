package cpuprotocol

import (
	"log"
)

// eventSink receives decoded server events.
type eventSink interface {
	dispatch(op Opcode, fields Fields) error
}

// Decoder turns the inbound byte stream into frames. It tolerates arbitrary
// chunking: a frame is only consumed once all of its bytes have arrived,
// and a partial frame stays buffered until the next Feed.
//
// A Decoder is not safe for concurrent use; the client feeds it from its
// reader goroutine only.
type Decoder struct {
	in      inbox
	table   *OpcodeTable
	pending pendingQueue
	events  eventSink
	logger  *log.Logger

	// err is set once the stream is desynchronized.
	err error
}

func newDecoder(table *OpcodeTable, pending pendingQueue, events eventSink, logger *log.Logger) *Decoder {
	return &Decoder{table: table, pending: pending, events: events, logger: logger}
}

// Buffered returns the number of received bytes not yet decoded.
func (d *Decoder) Buffered() int {
	return d.in.len()
}

// Feed queues p and decodes every complete frame in the queue, dispatching
// each one as it completes. It returns a *ProtocolError if an unknown
// opcode is found; the decoder then refuses further input. Errors returned
// by the event sink (a failed reply write) are passed through.
func (d *Decoder) Feed(p []byte) error {
	if d.err != nil {
		return d.err
	}
	d.in.append(p)

	for d.in.len() > 0 {
		// Look at the first byte to see what the message is.
		// - If it's a message we can't understand, the stream is lost.
		// - If it's a message we can understand but need more data, stop
		//   and check it again next time more data arrives.
		buf := d.in.bytes()
		op := Opcode(buf[0])

		switch op {
		case OpAck:
			layout, ok := d.pending.frontLayout()
			if !ok {
				d.logger.Printf("Got ACK but there are no requests...?")
				d.in.consume(1)
				continue
			}
			n, ok := layout.FrameSize(buf)
			if !ok {
				return nil
			}
			fields := layout.Decode(buf[:n])
			d.in.consume(n)
			d.pending.resolveFront(fields)

		case OpFail:
			if _, ok := d.pending.frontLayout(); !ok {
				d.logger.Printf("Got FAIL but there are no requests...?")
				d.in.consume(1)
				continue
			}
			d.in.consume(1)
			d.pending.failFront()

		default:
			layout, ok := d.table.EventLayout(op)
			if !ok {
				d.err = &ProtocolError{Opcode: op}
				return d.err
			}
			n, ok := layout.FrameSize(buf)
			if !ok {
				return nil
			}
			fields := layout.Decode(buf[:n])
			d.in.consume(n)
			if err := d.events.dispatch(op, fields); err != nil {
				return err
			}
		}
	}
	return nil
}
