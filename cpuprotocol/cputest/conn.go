package cputest

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/inseo-oh/con68/cpuprotocol"
)

const addrMask = 0x00ffffff

// Fault flag bits of EVENT_TRACE_EXC_MEM: bit 4 is set for reads, bit 3
// for instruction fetches.
const (
	faultRead  = 1 << 4
	faultFetch = 1 << 3
)

const (
	vectorBusError     = 2
	vectorAddressError = 3
	vectorIllegal      = 4
)

// busFault aborts an instruction with a bus or address error.
type busFault struct {
	vector uint8
	addr   uint32
	flags  uint8
}

func (f *busFault) Error() string {
	return fmt.Sprintf("bus fault (vector %d) at $%06x", f.vector, f.addr)
}

type serverConn struct {
	srv  *Server
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
	cpu CPU
}

// out writes p to the client, in chunks if the server is configured to.
func (sc *serverConn) out(p []byte) error {
	sc.wmu.Lock()
	defer sc.wmu.Unlock()

	chunk := sc.srv.cfg.chunkSize
	if chunk <= 0 {
		_, err := sc.conn.Write(p)
		return err
	}
	for len(p) > 0 {
		n := min(chunk, len(p))
		if _, err := sc.conn.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
		// Give the client a chance to read each piece on its own.
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (sc *serverConn) reply(cmd cpuprotocol.Opcode, payload ...byte) error {
	if d := sc.srv.cfg.replyDelay[cmd]; d > 0 {
		time.Sleep(d)
	}
	if sc.srv.cfg.failOps[cmd] {
		return sc.fail()
	}
	return sc.out(append([]byte{byte(cpuprotocol.OpAck)}, payload...))
}

func (sc *serverConn) fail() error {
	return sc.out([]byte{byte(cpuprotocol.OpFail)})
}

func (sc *serverConn) replyLong(cmd cpuprotocol.Opcode, v uint32) error {
	return sc.reply(cmd, binary.BigEndian.AppendUint32(nil, v)...)
}

func (sc *serverConn) readByte() (uint8, error) {
	return sc.r.ReadByte()
}

func (sc *serverConn) readWord() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(sc.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (sc *serverConn) readLong() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(sc.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// serve handles commands until BYE or a connection error.
func (sc *serverConn) serve() error {
	for {
		b, err := sc.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		op := cpuprotocol.Opcode(b)
		if op == cpuprotocol.OpBye {
			sc.srv.mu.Lock()
			sc.srv.bye = true
			sc.srv.mu.Unlock()
			return nil
		}
		if err := sc.command(op); err != nil {
			return err
		}
		sc.srv.record(sc.cpu)
	}
}

func (sc *serverConn) command(op cpuprotocol.Opcode) error {
	cpu := &sc.cpu

	switch op {
	case cpuprotocol.OpUnstop:
		cpu.Stopped = false
		return sc.reply(op)
	case cpuprotocol.OpIsStopped:
		var v byte
		if cpu.Stopped {
			v = 1
		}
		return sc.reply(op, v)
	case cpuprotocol.OpTraceExecOn, cpuprotocol.OpTraceExecOff:
		cpu.TraceExec = op == cpuprotocol.OpTraceExecOn
		return sc.reply(op)
	case cpuprotocol.OpTraceExcOn, cpuprotocol.OpTraceExcOff:
		cpu.TraceExc = op == cpuprotocol.OpTraceExcOn
		return sc.reply(op)
	case cpuprotocol.OpTick:
		if err := sc.tick(); err != nil {
			return err
		}
		return sc.reply(op)

	case cpuprotocol.OpWriteDreg, cpuprotocol.OpWriteAreg:
		reg, err := sc.readByte()
		if err != nil {
			return err
		}
		v, err := sc.readLong()
		if err != nil {
			return err
		}
		if op == cpuprotocol.OpWriteDreg {
			if reg > 7 {
				return sc.fail()
			}
			cpu.D[reg] = v
			return sc.reply(op)
		}
		if !cpu.setAreg(reg, v) {
			return sc.fail()
		}
		return sc.reply(op)

	case cpuprotocol.OpReadDreg:
		reg, err := sc.readByte()
		if err != nil {
			return err
		}
		if reg > 7 {
			return sc.fail()
		}
		return sc.replyLong(op, cpu.D[reg])
	case cpuprotocol.OpReadAreg:
		reg, err := sc.readByte()
		if err != nil {
			return err
		}
		v, ok := cpu.areg(reg)
		if !ok {
			return sc.fail()
		}
		return sc.replyLong(op, v)

	case cpuprotocol.OpWriteSSP, cpuprotocol.OpWriteUSP, cpuprotocol.OpWritePC:
		v, err := sc.readLong()
		if err != nil {
			return err
		}
		switch op {
		case cpuprotocol.OpWriteSSP:
			cpu.SSP = v
		case cpuprotocol.OpWriteUSP:
			cpu.USP = v
		default:
			cpu.PC = v
		}
		return sc.reply(op)
	case cpuprotocol.OpReadSSP:
		return sc.replyLong(op, cpu.SSP)
	case cpuprotocol.OpReadUSP:
		return sc.replyLong(op, cpu.USP)
	case cpuprotocol.OpReadPC:
		return sc.replyLong(op, cpu.PC)

	case cpuprotocol.OpWriteSR:
		v, err := sc.readWord()
		if err != nil {
			return err
		}
		cpu.SR = v
		return sc.reply(op)
	case cpuprotocol.OpReadSR:
		return sc.reply(op, byte(cpu.SR>>8), byte(cpu.SR))

	default:
		// The rest of the stream cannot be framed after an unknown command.
		sc.fail()
		return fmt.Errorf("unknown command %s", op)
	}
}

// areg returns An. A7 is the stack pointer selected by the S bit.
func (cpu *CPU) areg(reg uint8) (uint32, bool) {
	switch {
	case reg < 7:
		return cpu.A[reg], true
	case reg == 7 && cpu.SR&cpuprotocol.SRFlagS != 0:
		return cpu.SSP, true
	case reg == 7:
		return cpu.USP, true
	default:
		return 0, false
	}
}

func (cpu *CPU) setAreg(reg uint8, v uint32) bool {
	switch {
	case reg < 7:
		cpu.A[reg] = v
	case reg == 7 && cpu.SR&cpuprotocol.SRFlagS != 0:
		cpu.SSP = v
	case reg == 7:
		cpu.USP = v
	default:
		return false
	}
	return true
}

// event sends a server event and waits for the client's verdict. On ACK it
// returns the replyLen bytes that follow.
func (sc *serverConn) event(op cpuprotocol.Opcode, payload []byte, replyLen int) ([]byte, bool, error) {
	if err := sc.out(append([]byte{byte(op)}, payload...)); err != nil {
		return nil, false, err
	}

	b, err := sc.readByte()
	if err != nil {
		return nil, false, err
	}
	switch cpuprotocol.Opcode(b) {
	case cpuprotocol.OpAck:
		data := make([]byte, replyLen)
		if _, err := io.ReadFull(sc.r, data); err != nil {
			return nil, false, err
		}
		return data, true, nil
	case cpuprotocol.OpFail:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("expected ACK or FAIL after %s, got %s", op, cpuprotocol.Opcode(b))
	}
}

func (sc *serverConn) assert(addr uint32) (bool, error) {
	_, ok, err := sc.event(cpuprotocol.OpEventAddrAsserted, binary.BigEndian.AppendUint32(nil, addr), 0)
	return ok, err
}

func (sc *serverConn) readBus(addr uint32, lanes cpuprotocol.Lanes, flags uint8) (uint16, error) {
	addr &= addrMask
	ok, err := sc.assert(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &busFault{vector: vectorBusError, addr: addr, flags: flags | faultRead}
	}
	data, ok, err := sc.event(cpuprotocol.OpEventReadBus, []byte{byte(lanes)}, 2)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &busFault{vector: vectorBusError, addr: addr, flags: flags | faultRead}
	}
	return binary.BigEndian.Uint16(data), nil
}

func (sc *serverConn) writeBus(addr uint32, lanes cpuprotocol.Lanes, v uint16) error {
	addr &= addrMask
	ok, err := sc.assert(addr)
	if err != nil {
		return err
	}
	if !ok {
		return &busFault{vector: vectorBusError, addr: addr}
	}
	_, ok, err = sc.event(cpuprotocol.OpEventWriteBus, []byte{byte(lanes), byte(v >> 8), byte(v)}, 0)
	if err != nil {
		return err
	}
	if !ok {
		return &busFault{vector: vectorBusError, addr: addr}
	}
	return nil
}
