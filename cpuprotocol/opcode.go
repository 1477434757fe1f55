package cpuprotocol

import (
	"fmt"
	"sync"
)

// Opcode is the header byte that starts every message on the wire.
type Opcode uint8

const (
	// 0x - Replies. Every reply, in either direction, starts with one of these.
	OpAck  Opcode = 0x00 // Acknowledged
	OpFail Opcode = 0x01 // Failed

	// 1x - General commands
	OpBye          Opcode = 0x10 // Close the connection
	OpUnstop       Opcode = 0x11 // Leave the STOPped state
	OpIsStopped    Opcode = 0x12 // Is the CPU stopped?
	OpTraceExecOn  Opcode = 0x13 // Trace execution - enable
	OpTraceExecOff Opcode = 0x14 // Trace execution - disable
	OpTraceExcOn   Opcode = 0x15 // Trace exceptions - enable
	OpTraceExcOff  Opcode = 0x16 // Trace exceptions - disable
	OpTick         Opcode = 0x1f // Run the CPU for a tick

	// 2x - CPU state manipulation commands
	OpWriteDreg Opcode = 0x20
	OpReadDreg  Opcode = 0x21
	OpWriteAreg Opcode = 0x22
	OpReadAreg  Opcode = 0x23
	OpWriteSSP  Opcode = 0x24
	OpReadSSP   Opcode = 0x25
	OpWriteUSP  Opcode = 0x26
	OpReadUSP   Opcode = 0x27
	OpWritePC   Opcode = 0x28
	OpReadPC    Opcode = 0x29
	OpWriteSR   Opcode = 0x2a
	OpReadSR    Opcode = 0x2b

	// 8x - Server events. The client must answer each with ACK or FAIL.
	OpEventAddrAsserted Opcode = 0x80 // Address asserted
	OpEventReadBus      Opcode = 0x81 // Read from the last asserted address
	OpEventWriteBus     Opcode = 0x82 // Write to the last asserted address
	OpEventReset        Opcode = 0x83 // RESET asserted
	OpEventTraceExec    Opcode = 0x84 // Instruction executed
	OpEventTraceExc     Opcode = 0x85 // Exception taken (non-memory)
	OpEventTraceExcMem  Opcode = 0x86 // Exception taken (bus or address error)
)

// OpcodeFamily groups opcodes by the role they play on the wire.
type OpcodeFamily int

const (
	// FamilyUnknown is returned for bytes that are not a valid opcode.
	FamilyUnknown OpcodeFamily = iota
	// FamilyReply covers ACK and FAIL.
	FamilyReply
	// FamilyCommand covers messages sent by the client.
	FamilyCommand
	// FamilyEvent covers messages initiated by the server.
	FamilyEvent
)

type opcodeEntry struct {
	known  bool
	name   string
	family OpcodeFamily
	layout Layout // fields following the opcode; events only
}

// OpcodeTable maps opcode bytes to their names, families and, for events,
// the fixed layout of their fields. A table is immutable once built.
type OpcodeTable struct {
	entries [256]opcodeEntry
}

var standardOpcodes = sync.OnceValue(func() *OpcodeTable {
	t := &OpcodeTable{}
	add := func(op Opcode, name string, family OpcodeFamily, layout Layout) {
		t.entries[op] = opcodeEntry{known: true, name: name, family: family, layout: layout}
	}

	add(OpAck, "ACK", FamilyReply, nil)
	add(OpFail, "FAIL", FamilyReply, nil)

	add(OpBye, "BYE", FamilyCommand, nil)
	add(OpUnstop, "UNSTOP", FamilyCommand, nil)
	add(OpIsStopped, "IS_STOPPED", FamilyCommand, nil)
	add(OpTraceExecOn, "TRACE_EXEC_ON", FamilyCommand, nil)
	add(OpTraceExecOff, "TRACE_EXEC_OFF", FamilyCommand, nil)
	add(OpTraceExcOn, "TRACE_EXC_ON", FamilyCommand, nil)
	add(OpTraceExcOff, "TRACE_EXC_OFF", FamilyCommand, nil)
	add(OpTick, "TICK", FamilyCommand, nil)
	add(OpWriteDreg, "WRITE_DREG", FamilyCommand, nil)
	add(OpReadDreg, "READ_DREG", FamilyCommand, nil)
	add(OpWriteAreg, "WRITE_AREG", FamilyCommand, nil)
	add(OpReadAreg, "READ_AREG", FamilyCommand, nil)
	add(OpWriteSSP, "WRITE_SSP", FamilyCommand, nil)
	add(OpReadSSP, "READ_SSP", FamilyCommand, nil)
	add(OpWriteUSP, "WRITE_USP", FamilyCommand, nil)
	add(OpReadUSP, "READ_USP", FamilyCommand, nil)
	add(OpWritePC, "WRITE_PC", FamilyCommand, nil)
	add(OpReadPC, "READ_PC", FamilyCommand, nil)
	add(OpWriteSR, "WRITE_SR", FamilyCommand, nil)
	add(OpReadSR, "READ_SR", FamilyCommand, nil)

	add(OpEventAddrAsserted, "EVENT_ADDR_ASSERTED", FamilyEvent, Layout{FieldLong})
	add(OpEventReadBus, "EVENT_READ_BUS", FamilyEvent, Layout{FieldByte})
	add(OpEventWriteBus, "EVENT_WRITE_BUS", FamilyEvent, Layout{FieldByte, FieldWord})
	add(OpEventReset, "EVENT_RESET", FamilyEvent, Layout{})
	add(OpEventTraceExec, "EVENT_TRACE_EXEC", FamilyEvent, Layout{FieldLong, FieldWord, FieldString})
	add(OpEventTraceExc, "EVENT_TRACE_EXC", FamilyEvent, Layout{FieldByte, FieldLong})
	add(OpEventTraceExcMem, "EVENT_TRACE_EXC_MEM", FamilyEvent,
		Layout{FieldByte, FieldLong, FieldWord, FieldLong, FieldByte})
	return t
})

// StandardOpcodes returns the opcode table of the emulator protocol.
func StandardOpcodes() *OpcodeTable {
	return standardOpcodes()
}

// Lookup returns the name and family of op.
func (t *OpcodeTable) Lookup(op Opcode) (name string, family OpcodeFamily, ok bool) {
	e := t.entries[op]
	return e.name, e.family, e.known
}

// EventLayout returns the field layout of an event opcode.
// The second result is false if op is not an event.
func (t *OpcodeTable) EventLayout(op Opcode) (Layout, bool) {
	e := t.entries[op]
	if !e.known || e.family != FamilyEvent {
		return nil, false
	}
	return e.layout, true
}

// String returns the protocol name of the opcode, or its hex value if the
// byte is not a known opcode.
func (op Opcode) String() string {
	if name, _, ok := StandardOpcodes().Lookup(op); ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(op))
}

// Family returns the role of the opcode on the wire.
func (op Opcode) Family() OpcodeFamily {
	_, family, _ := StandardOpcodes().Lookup(op)
	return family
}
