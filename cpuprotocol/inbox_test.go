package cpuprotocol

import (
	"bytes"
	"testing"
)

func TestInboxAppendConsume(t *testing.T) {
	var q inbox

	q.append([]byte{1, 2, 3})
	q.append([]byte{4})
	if q.len() != 4 {
		t.Fatalf("len = %d, want 4", q.len())
	}

	q.consume(2)
	if !bytes.Equal(q.bytes(), []byte{3, 4}) {
		t.Errorf("bytes = %v, want [3 4]", q.bytes())
	}

	q.consume(10)
	if q.len() != 0 {
		t.Errorf("len = %d after over-consume, want 0", q.len())
	}
}

func TestInboxResetWhenDrained(t *testing.T) {
	var q inbox
	q.append([]byte{1, 2})
	q.consume(2)
	if q.h != 0 || len(q.b) != 0 {
		t.Errorf("drained inbox not reset: h=%d len=%d", q.h, len(q.b))
	}

	q.append([]byte{9})
	if !bytes.Equal(q.bytes(), []byte{9}) {
		t.Errorf("bytes = %v, want [9]", q.bytes())
	}
}

func TestInboxCompacts(t *testing.T) {
	var q inbox
	q.append(make([]byte, compactThreshold))
	q.append([]byte{0xaa, 0xbb})

	q.consume(compactThreshold)
	if q.h != 0 {
		t.Errorf("head = %d after consuming past threshold, want 0", q.h)
	}
	if !bytes.Equal(q.bytes(), []byte{0xaa, 0xbb}) {
		t.Errorf("bytes = %v, want [aa bb]", q.bytes())
	}
}
