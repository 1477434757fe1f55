package cpuprotocol

import (
	"log"
	"sync"
)

// BusHandler answers the bus events of the remote CPU. Each access targets
// the address most recently passed to OnAddressAsserted.
type BusHandler interface {
	// OnAddressAsserted reports whether a device responds at addr.
	// Returning false makes the remote CPU take a bus error.
	OnAddressAsserted(addr uint32) bool
	// OnBusRead returns the data bus value for the active lanes.
	OnBusRead(lanes Lanes) uint16
	// OnBusWrite stores the active lanes of v.
	OnBusWrite(lanes Lanes, v uint16)
	// OnReset is called when the CPU asserts its RESET line.
	OnReset()
}

// TraceHandler receives trace events. Trace events are always acknowledged.
type TraceHandler interface {
	OnTraceExec(ev TraceExec)
	OnTraceException(ev TraceException)
}

// TraceExec reports an instruction about to be executed.
type TraceExec struct {
	PC     uint32
	IR     uint16
	Disasm string
}

// TraceException reports an exception taken by the CPU. The fault fields
// are only set for bus and address errors (HasFault).
type TraceException struct {
	Vector uint8
	PC     uint32

	HasFault   bool
	IR         uint16
	FaultAddr  uint32
	FaultFlags uint8
}

// dispatcher routes decoded events to the registered handlers and writes
// back their verdict.
type dispatcher struct {
	mu    sync.Mutex
	bus   BusHandler
	trace TraceHandler

	send   func(p []byte) error
	logger *log.Logger
}

func (d *dispatcher) setBusHandler(h BusHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = h
}

func (d *dispatcher) setTraceHandler(h TraceHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace = h
}

func (d *dispatcher) handlers() (BusHandler, TraceHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bus, d.trace
}

var (
	replyAck  = []byte{byte(OpAck)}
	replyFail = []byte{byte(OpFail)}
)

func (d *dispatcher) dispatch(op Opcode, f Fields) error {
	bus, trace := d.handlers()

	switch op {
	case OpEventAddrAsserted:
		if bus == nil {
			d.logger.Printf("No bus handler for %s %#x", op, f.Long(0))
			return d.send(replyFail)
		}
		if !bus.OnAddressAsserted(f.Long(0)) {
			return d.send(replyFail)
		}
		return d.send(replyAck)

	case OpEventReadBus:
		if bus == nil {
			d.logger.Printf("No bus handler for %s", op)
			return d.send(replyFail)
		}
		v := bus.OnBusRead(Lanes(f.Byte(0)))
		return d.send([]byte{byte(OpAck), byte(v >> 8), byte(v)})

	case OpEventWriteBus:
		if bus == nil {
			d.logger.Printf("No bus handler for %s", op)
			return d.send(replyFail)
		}
		bus.OnBusWrite(Lanes(f.Byte(0)), f.Word(1))
		return d.send(replyAck)

	case OpEventReset:
		if bus != nil {
			bus.OnReset()
		}
		return d.send(replyAck)

	case OpEventTraceExec:
		if trace != nil {
			trace.OnTraceExec(TraceExec{PC: f.Long(0), IR: f.Word(1), Disasm: f.Text(2)})
		}
		return d.send(replyAck)

	case OpEventTraceExc:
		if trace != nil {
			trace.OnTraceException(TraceException{Vector: f.Byte(0), PC: f.Long(1)})
		}
		return d.send(replyAck)

	case OpEventTraceExcMem:
		if trace != nil {
			trace.OnTraceException(TraceException{
				Vector:     f.Byte(0),
				PC:         f.Long(1),
				HasFault:   true,
				IR:         f.Word(2),
				FaultAddr:  f.Long(3),
				FaultFlags: f.Byte(4),
			})
		}
		return d.send(replyAck)

	default:
		// The decoder only hands over opcodes that have an event layout.
		d.logger.Printf("Unhandled event %s", op)
		return d.send(replyFail)
	}
}
