package cpuprotocol

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Protocol constants matching the remote emulator.
const (
	// DefaultHost is the address the emulator server listens on.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the TCP port of the emulator server.
	DefaultPort = 6800

	// CommandTimeout is the default time a command may wait for its reply.
	CommandTimeout = 1000 * time.Millisecond

	// ConnectionTimeout is the timeout for establishing connections.
	ConnectionTimeout = 5 * time.Second

	// DefaultRAMSize is the size of the RAM image exposed to the remote CPU.
	// It covers the 68000's full 24-bit address space.
	DefaultRAMSize = 16 * 1024 * 1024

	// MaxStringLength is the longest payload a length-prefixed string field
	// can carry.
	MaxStringLength = 255

	// readBufferSize is the size of a single read from the connection.
	readBufferSize = 4096
)

// DefaultAddr returns the host:port of the default emulator server.
func DefaultAddr() string {
	return net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort))
}

// Lanes is the data strobe mask of a 16-bit bus transfer.
//
// The 68000 has UDS (upper data strobe) and LDS (lower data strobe) pins that
// tell the bus to only look at the upper or lower half of the data bus, which
// is how byte accesses avoid touching the other half.
type Lanes uint8

const (
	// LaneUpper selects bits 15-8, the byte at the even address.
	LaneUpper Lanes = 1 << 0
	// LaneLower selects bits 7-0, the byte at the odd address.
	LaneLower Lanes = 1 << 1
	// LaneBoth selects the full 16-bit word.
	LaneBoth = LaneUpper | LaneLower
)

// Upper reports whether the upper byte lane is active.
func (l Lanes) Upper() bool { return l&LaneUpper != 0 }

// Lower reports whether the lower byte lane is active.
func (l Lanes) Lower() bool { return l&LaneLower != 0 }

func (l Lanes) String() string {
	switch l {
	case 0:
		return "none"
	case LaneUpper:
		return "upper"
	case LaneLower:
		return "lower"
	case LaneBoth:
		return "both"
	default:
		return fmt.Sprintf("lanes(%d)", uint8(l))
	}
}

// Condition code flags of the status register.
const (
	CCRFlagC uint16 = 1 << 0
	CCRFlagV uint16 = 1 << 1
	CCRFlagZ uint16 = 1 << 2
	CCRFlagN uint16 = 1 << 3
	CCRFlagX uint16 = 1 << 4
)

// SRFlagS is the supervisor bit of the status register.
const SRFlagS uint16 = 1 << 13
