package cpuprotocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Register counts of the 68000 as seen through the protocol. A7 is reached
// through the SSP and USP commands.
const (
	NumDataRegs    = 8
	NumAddressRegs = 7
)

// Command is an outbound command together with the layout of the payload
// its ACK carries. Use the constructor functions (NewWriteDregCommand,
// NewTickCommand, etc.) to create Command instances.
type Command struct {
	Op Opcode

	// Register is the register index of DREG and AREG commands.
	Register    uint8
	HasRegister bool

	// Value is the value written by WRITE commands.
	Value     uint32
	ValueKind FieldKind // FieldWord or FieldLong; zero if there is no value

	// Reply is the layout of the fields that follow the ACK.
	Reply Layout
}

// Command constructors - these provide a clean API for creating commands.

// NewByeCommand creates the command that closes the connection.
// The server does not reply to it.
func NewByeCommand() Command {
	return Command{Op: OpBye, Reply: LayoutNone}
}

// NewUnstopCommand creates a command that takes the CPU out of the stopped state.
func NewUnstopCommand() Command {
	return Command{Op: OpUnstop, Reply: LayoutNone}
}

// NewIsStoppedCommand creates a command that asks whether the CPU is stopped.
// The reply is one byte, 1 if stopped.
func NewIsStoppedCommand() Command {
	return Command{Op: OpIsStopped, Reply: LayoutByte}
}

// NewTraceExecCommand creates a command that enables or disables
// execution trace events.
func NewTraceExecCommand(on bool) Command {
	if on {
		return Command{Op: OpTraceExecOn, Reply: LayoutNone}
	}
	return Command{Op: OpTraceExecOff, Reply: LayoutNone}
}

// NewTraceExcCommand creates a command that enables or disables
// exception trace events.
func NewTraceExcCommand(on bool) Command {
	if on {
		return Command{Op: OpTraceExcOn, Reply: LayoutNone}
	}
	return Command{Op: OpTraceExcOff, Reply: LayoutNone}
}

// NewTickCommand creates a command that runs the CPU for one tick.
func NewTickCommand() Command {
	return Command{Op: OpTick, Reply: LayoutNone}
}

// NewWriteDregCommand creates a command that sets data register Dn.
func NewWriteDregCommand(reg uint8, v uint32) Command {
	return Command{Op: OpWriteDreg, Register: reg, HasRegister: true, Value: v, ValueKind: FieldLong, Reply: LayoutNone}
}

// NewReadDregCommand creates a command that reads data register Dn.
func NewReadDregCommand(reg uint8) Command {
	return Command{Op: OpReadDreg, Register: reg, HasRegister: true, Reply: LayoutLong}
}

// NewWriteAregCommand creates a command that sets address register An.
func NewWriteAregCommand(reg uint8, v uint32) Command {
	return Command{Op: OpWriteAreg, Register: reg, HasRegister: true, Value: v, ValueKind: FieldLong, Reply: LayoutNone}
}

// NewReadAregCommand creates a command that reads address register An.
func NewReadAregCommand(reg uint8) Command {
	return Command{Op: OpReadAreg, Register: reg, HasRegister: true, Reply: LayoutLong}
}

// NewWriteSSPCommand creates a command that sets the supervisor stack pointer.
func NewWriteSSPCommand(v uint32) Command {
	return Command{Op: OpWriteSSP, Value: v, ValueKind: FieldLong, Reply: LayoutNone}
}

// NewReadSSPCommand creates a command that reads the supervisor stack pointer.
func NewReadSSPCommand() Command {
	return Command{Op: OpReadSSP, Reply: LayoutLong}
}

// NewWriteUSPCommand creates a command that sets the user stack pointer.
func NewWriteUSPCommand(v uint32) Command {
	return Command{Op: OpWriteUSP, Value: v, ValueKind: FieldLong, Reply: LayoutNone}
}

// NewReadUSPCommand creates a command that reads the user stack pointer.
func NewReadUSPCommand() Command {
	return Command{Op: OpReadUSP, Reply: LayoutLong}
}

// NewWritePCCommand creates a command that sets the program counter.
func NewWritePCCommand(v uint32) Command {
	return Command{Op: OpWritePC, Value: v, ValueKind: FieldLong, Reply: LayoutNone}
}

// NewReadPCCommand creates a command that reads the program counter.
func NewReadPCCommand() Command {
	return Command{Op: OpReadPC, Reply: LayoutLong}
}

// NewWriteSRCommand creates a command that sets the status register.
func NewWriteSRCommand(v uint16) Command {
	return Command{Op: OpWriteSR, Value: uint32(v), ValueKind: FieldWord, Reply: LayoutNone}
}

// NewReadSRCommand creates a command that reads the status register.
func NewReadSRCommand() Command {
	return Command{Op: OpReadSR, Reply: LayoutWord}
}

// Encode returns the bytes of the command as sent on the wire.
func (c Command) Encode() []byte {
	b := make([]byte, 0, 6)
	b = append(b, byte(c.Op))
	if c.HasRegister {
		b = append(b, c.Register)
	}
	switch c.ValueKind {
	case FieldByte:
		b = append(b, byte(c.Value))
	case FieldWord:
		b = binary.BigEndian.AppendUint16(b, uint16(c.Value))
	case FieldLong:
		b = binary.BigEndian.AppendUint32(b, c.Value)
	}
	return b
}

// String renders the command for log and error output,
// e.g. "WRITE_DREG D0 $12345678".
func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Op.String())
	if c.HasRegister {
		prefix := "R"
		switch c.Op {
		case OpWriteDreg, OpReadDreg:
			prefix = "D"
		case OpWriteAreg, OpReadAreg:
			prefix = "A"
		}
		fmt.Fprintf(&sb, " %s%d", prefix, c.Register)
	}
	switch c.ValueKind {
	case FieldByte:
		fmt.Fprintf(&sb, " $%02X", c.Value)
	case FieldWord:
		fmt.Fprintf(&sb, " $%04X", c.Value)
	case FieldLong:
		fmt.Fprintf(&sb, " $%08X", c.Value)
	}
	return sb.String()
}
