package cpuprotocol

import (
	"bytes"
	"testing"
)

// TestCommandEncoding verifies the wire bytes of every command.
func TestCommandEncoding(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []byte
	}{
		{"Bye", NewByeCommand(), []byte{0x10}},
		{"Unstop", NewUnstopCommand(), []byte{0x11}},
		{"IsStopped", NewIsStoppedCommand(), []byte{0x12}},
		{"TraceExec on", NewTraceExecCommand(true), []byte{0x13}},
		{"TraceExec off", NewTraceExecCommand(false), []byte{0x14}},
		{"TraceExc on", NewTraceExcCommand(true), []byte{0x15}},
		{"TraceExc off", NewTraceExcCommand(false), []byte{0x16}},
		{"Tick", NewTickCommand(), []byte{0x1f}},
		{"WriteDreg", NewWriteDregCommand(0, 0x12345678), []byte{0x20, 0x00, 0x12, 0x34, 0x56, 0x78}},
		{"ReadDreg", NewReadDregCommand(7), []byte{0x21, 0x07}},
		{"WriteAreg", NewWriteAregCommand(3, 0x00fffffe), []byte{0x22, 0x03, 0x00, 0xff, 0xff, 0xfe}},
		{"ReadAreg", NewReadAregCommand(6), []byte{0x23, 0x06}},
		{"WriteSSP", NewWriteSSPCommand(0x800), []byte{0x24, 0x00, 0x00, 0x08, 0x00}},
		{"ReadSSP", NewReadSSPCommand(), []byte{0x25}},
		{"WriteUSP", NewWriteUSPCommand(0x400), []byte{0x26, 0x00, 0x00, 0x04, 0x00}},
		{"ReadUSP", NewReadUSPCommand(), []byte{0x27}},
		{"WritePC", NewWritePCCommand(0xc00), []byte{0x28, 0x00, 0x00, 0x0c, 0x00}},
		{"ReadPC", NewReadPCCommand(), []byte{0x29}},
		{"WriteSR", NewWriteSRCommand(0x2700), []byte{0x2a, 0x27, 0x00}},
		{"ReadSR", NewReadSRCommand(), []byte{0x2b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cmd.Encode()
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("got % x, want % x", got, tt.expected)
			}
		})
	}
}

func TestCommandReplyLayouts(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected string
	}{
		{"IsStopped", NewIsStoppedCommand(), "b"},
		{"ReadDreg", NewReadDregCommand(0), "l"},
		{"ReadAreg", NewReadAregCommand(0), "l"},
		{"ReadPC", NewReadPCCommand(), "l"},
		{"ReadSR", NewReadSRCommand(), "w"},
		{"Tick", NewTickCommand(), ""},
		{"WriteDreg", NewWriteDregCommand(0, 0), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Reply.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd      Command
		expected string
	}{
		{NewWriteDregCommand(0, 0x12345678), "WRITE_DREG D0 $12345678"},
		{NewReadAregCommand(5), "READ_AREG A5"},
		{NewWriteSRCommand(0x2700), "WRITE_SR $2700"},
		{NewTickCommand(), "TICK"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op       Opcode
		expected string
	}{
		{OpAck, "ACK"},
		{OpTick, "TICK"},
		{OpEventTraceExcMem, "EVENT_TRACE_EXC_MEM"},
		{Opcode(0x42), "0x42"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.op.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOpcodeFamilies(t *testing.T) {
	table := StandardOpcodes()

	for b := 0; b < 256; b++ {
		op := Opcode(b)
		_, family, known := table.Lookup(op)
		_, isEvent := table.EventLayout(op)

		if isEvent != (known && family == FamilyEvent) {
			t.Errorf("%s: EventLayout ok=%v but family=%v", op, isEvent, family)
		}
		if b >= 0x80 && b <= 0x86 && !isEvent {
			t.Errorf("%s should be an event", op)
		}
	}
}
