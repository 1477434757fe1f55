package cpuprotocol

import (
	"bytes"
	"log"
	"testing"
)

func newTestDispatcher() (*dispatcher, *[][]byte) {
	var sent [][]byte
	d := &dispatcher{
		send: func(p []byte) error {
			sent = append(sent, append([]byte(nil), p...))
			return nil
		},
		logger: log.New(&bytes.Buffer{}, "", 0),
	}
	return d, &sent
}

func TestDispatcherReplies(t *testing.T) {
	ram := NewMemory(0x100)
	ram.Write(0x10, []byte{0xab, 0xcd})

	tests := []struct {
		name     string
		bus      bool
		op       Opcode
		fields   Fields
		expected []byte
	}{
		{"assert without handler", false, OpEventAddrAsserted, Fields{{Kind: FieldLong, Num: 0x10}}, []byte{0x01}},
		{"read without handler", false, OpEventReadBus, Fields{{Kind: FieldByte, Num: 3}}, []byte{0x01}},
		{"write without handler", false, OpEventWriteBus, Fields{{Kind: FieldByte, Num: 3}, {Kind: FieldWord, Num: 1}}, []byte{0x01}},
		{"reset without handler", false, OpEventReset, nil, []byte{0x00}},
		{"trace without handler", false, OpEventTraceExc, Fields{{Kind: FieldByte, Num: 4}, {Kind: FieldLong}}, []byte{0x00}},
		{"assert", true, OpEventAddrAsserted, Fields{{Kind: FieldLong, Num: 0x10}}, []byte{0x00}},
		{"read both lanes", true, OpEventReadBus, Fields{{Kind: FieldByte, Num: 3}}, []byte{0x00, 0xab, 0xcd}},
		{"read lower lane", true, OpEventReadBus, Fields{{Kind: FieldByte, Num: 2}}, []byte{0x00, 0x00, 0xcd}},
		{"reset", true, OpEventReset, nil, []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sent := newTestDispatcher()
			if tt.bus {
				d.setBusHandler(ram)
				ram.OnAddressAsserted(0x10)
			}

			if err := d.dispatch(tt.op, tt.fields); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(*sent) != 1 {
				t.Fatalf("sent %d replies, want 1", len(*sent))
			}
			if !bytes.Equal((*sent)[0], tt.expected) {
				t.Errorf("reply = % x, want % x", (*sent)[0], tt.expected)
			}
		})
	}
}

type refusingBus struct{ Memory }

func (*refusingBus) OnAddressAsserted(uint32) bool { return false }

func TestDispatcherRefusedAddress(t *testing.T) {
	d, sent := newTestDispatcher()
	d.setBusHandler(&refusingBus{})

	if err := d.dispatch(OpEventAddrAsserted, Fields{{Kind: FieldLong, Num: 0x123456}}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !bytes.Equal((*sent)[0], []byte{0x01}) {
		t.Errorf("reply = % x, want 01", (*sent)[0])
	}
}
