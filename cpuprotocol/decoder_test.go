package cpuprotocol

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue stands in for the correlator.
type fakeQueue struct {
	layouts  []Layout
	resolved []Fields
	failed   int
}

func (q *fakeQueue) frontLayout() (Layout, bool) {
	if len(q.layouts) == 0 {
		return nil, false
	}
	return q.layouts[0], true
}

func (q *fakeQueue) resolveFront(f Fields) {
	q.layouts = q.layouts[1:]
	q.resolved = append(q.resolved, f)
}

func (q *fakeQueue) failFront() {
	q.layouts = q.layouts[1:]
	q.failed++
}

type recordedEvent struct {
	op     Opcode
	fields Fields
}

type fakeSink struct {
	events []recordedEvent
	err    error
}

func (s *fakeSink) dispatch(op Opcode, f Fields) error {
	s.events = append(s.events, recordedEvent{op, f})
	return s.err
}

func newTestDecoder(layouts ...Layout) (*Decoder, *fakeQueue, *fakeSink, *bytes.Buffer) {
	var logs bytes.Buffer
	q := &fakeQueue{layouts: layouts}
	s := &fakeSink{}
	d := newDecoder(StandardOpcodes(), q, s, log.New(&logs, "", 0))
	return d, q, s, &logs
}

// sampleStream holds one frame of every shape: an ACK with a long, a read
// event, a FAIL, a trace event with a string and an empty ACK.
var sampleStream = []byte{
	0x00, 0x12, 0x34, 0x56, 0x78,
	0x81, 0x03,
	0x01,
	0x84, 0x00, 0x00, 0x04, 0x00, 0x4e, 0x71, 0x03, 'n', 'o', 'p',
	0x00,
}

func sampleLayouts() []Layout {
	return []Layout{LayoutLong, LayoutNone, LayoutNone}
}

func checkSampleResult(t *testing.T, q *fakeQueue, s *fakeSink) {
	t.Helper()

	require.Len(t, q.resolved, 2)
	assert.Equal(t, uint32(0x12345678), q.resolved[0].Long(0))
	assert.Empty(t, q.resolved[1])
	assert.Equal(t, 1, q.failed)

	require.Len(t, s.events, 2)
	assert.Equal(t, OpEventReadBus, s.events[0].op)
	assert.Equal(t, uint8(3), s.events[0].fields.Byte(0))
	assert.Equal(t, OpEventTraceExec, s.events[1].op)
	assert.Equal(t, uint32(0x400), s.events[1].fields.Long(0))
	assert.Equal(t, uint16(0x4e71), s.events[1].fields.Word(1))
	assert.Equal(t, "nop", s.events[1].fields.Text(2))
}

func TestDecoderWholeStream(t *testing.T) {
	d, q, s, _ := newTestDecoder(sampleLayouts()...)

	require.NoError(t, d.Feed(sampleStream))
	checkSampleResult(t, q, s)
	assert.Zero(t, d.Buffered())
}

// Delivering the stream split at any point must decode the same frames.
func TestDecoderAnySplit(t *testing.T) {
	for cut := 1; cut < len(sampleStream); cut++ {
		d, q, s, _ := newTestDecoder(sampleLayouts()...)

		require.NoError(t, d.Feed(sampleStream[:cut]))
		require.NoError(t, d.Feed(sampleStream[cut:]))
		checkSampleResult(t, q, s)
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	d, q, s, _ := newTestDecoder(sampleLayouts()...)

	for _, b := range sampleStream {
		require.NoError(t, d.Feed([]byte{b}))
	}
	checkSampleResult(t, q, s)
}

func TestDecoderPartialEvent(t *testing.T) {
	d, _, s, _ := newTestDecoder()

	require.NoError(t, d.Feed([]byte{0x81}))
	assert.Empty(t, s.events, "event dispatched before its payload arrived")
	assert.Equal(t, 1, d.Buffered())

	require.NoError(t, d.Feed([]byte{0x01}))
	require.Len(t, s.events, 1)
	assert.Equal(t, uint8(LaneUpper), s.events[0].fields.Byte(0))
	assert.Zero(t, d.Buffered())
}

func TestDecoderPartialReply(t *testing.T) {
	d, q, _, _ := newTestDecoder(LayoutLong)

	require.NoError(t, d.Feed([]byte{0x00, 0x12, 0x34}))
	assert.Empty(t, q.resolved)

	require.NoError(t, d.Feed([]byte{0x56, 0x78}))
	require.Len(t, q.resolved, 1)
	assert.Equal(t, uint32(0x12345678), q.resolved[0].Long(0))
}

func TestDecoderUnknownOpcode(t *testing.T) {
	d, _, s, _ := newTestDecoder()

	err := d.Feed([]byte{0x81, 0x01, 0x42, 0x81, 0x02})
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, Opcode(0x42), perr.Opcode)

	// Frames before the bad byte were still delivered.
	assert.Len(t, s.events, 1)

	// The decoder stays failed.
	err = d.Feed([]byte{0x83})
	assert.ErrorAs(t, err, &perr)
	assert.Len(t, s.events, 1)
}

// A command opcode arriving from the server is just as unframeable.
func TestDecoderCommandOpcodeFromServer(t *testing.T) {
	d, _, _, _ := newTestDecoder()

	var perr *ProtocolError
	assert.ErrorAs(t, d.Feed([]byte{byte(OpTick)}), &perr)
}

func TestDecoderReplyWithoutRequest(t *testing.T) {
	d, q, _, logs := newTestDecoder()

	require.NoError(t, d.Feed([]byte{0x00, 0x01}))
	assert.Empty(t, q.resolved)
	assert.Zero(t, q.failed)
	assert.Zero(t, d.Buffered())
	assert.Contains(t, logs.String(), "Got ACK but there are no requests...?")
	assert.Contains(t, logs.String(), "Got FAIL but there are no requests...?")
}

func TestDecoderSinkError(t *testing.T) {
	d, _, s, _ := newTestDecoder()
	s.err = errors.New("write failed")

	err := d.Feed([]byte{0x83})
	assert.EqualError(t, err, "write failed")
}
