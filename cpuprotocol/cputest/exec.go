package cputest

import (
	"errors"
	"fmt"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// tick fetches and executes one instruction. A stopped CPU does nothing.
func (sc *serverConn) tick() error {
	cpu := &sc.cpu
	if cpu.Stopped {
		return nil
	}

	pc := cpu.PC
	var ir uint16
	err := func() error {
		if pc&1 != 0 {
			return &busFault{vector: vectorAddressError, addr: pc, flags: faultRead | faultFetch}
		}
		var err error
		ir, err = sc.readBus(pc, cpuprotocol.LaneBoth, faultFetch)
		if err != nil {
			return err
		}
		if cpu.TraceExec {
			if err := sc.traceExec(pc, ir); err != nil {
				return err
			}
		}
		return sc.execute(pc, ir)
	}()

	var fault *busFault
	if errors.As(err, &fault) {
		cpu.PC = (pc + 2) & addrMask
		return sc.traceFault(fault, pc, ir)
	}
	return err
}

func (sc *serverConn) execute(pc uint32, ir uint16) error {
	cpu := &sc.cpu
	next := pc + 2

	switch {
	case ir == 0x4e71: // NOP

	case ir == 0x4e70: // RESET
		if _, _, err := sc.event(cpuprotocol.OpEventReset, nil, 0); err != nil {
			return err
		}

	case ir == 0x4e72: // STOP #imm
		imm, err := sc.readBus(pc+2, cpuprotocol.LaneBoth, faultFetch)
		if err != nil {
			return err
		}
		cpu.SR = imm
		cpu.Stopped = true
		next = pc + 4

	case ir&0xf100 == 0x7000: // MOVEQ #imm,Dn
		v := uint32(int32(int8(ir)))
		cpu.D[(ir>>9)&7] = v
		cpu.setNZ(v&0x80000000 != 0, v == 0)

	case ir == 0x3080: // MOVE.W D0,(A0)
		addr := cpu.A[0]
		if addr&1 != 0 {
			return &busFault{vector: vectorAddressError, addr: addr}
		}
		v := uint16(cpu.D[0])
		if err := sc.writeBus(addr, cpuprotocol.LaneBoth, v); err != nil {
			return err
		}
		cpu.setNZ(v&0x8000 != 0, v == 0)

	case ir == 0x3210: // MOVE.W (A0),D1
		addr := cpu.A[0]
		if addr&1 != 0 {
			return &busFault{vector: vectorAddressError, addr: addr, flags: faultRead}
		}
		v, err := sc.readBus(addr, cpuprotocol.LaneBoth, 0)
		if err != nil {
			return err
		}
		cpu.D[1] = cpu.D[1]&0xffff0000 | uint32(v)
		cpu.setNZ(v&0x8000 != 0, v == 0)

	case ir == 0x1080: // MOVE.B D0,(A0)
		addr := cpu.A[0]
		v := uint8(cpu.D[0])
		lanes, word := cpuprotocol.LaneUpper, uint16(v)<<8
		if addr&1 != 0 {
			lanes, word = cpuprotocol.LaneLower, uint16(v)
		}
		if err := sc.writeBus(addr&^1, lanes, word); err != nil {
			return err
		}
		cpu.setNZ(v&0x80 != 0, v == 0)

	default:
		cpu.PC = next & addrMask
		return sc.traceException(vectorIllegal, pc)
	}

	cpu.PC = next & addrMask
	return nil
}

func (cpu *CPU) setNZ(n, z bool) {
	sr := cpu.SR &^ (cpuprotocol.CCRFlagN | cpuprotocol.CCRFlagZ | cpuprotocol.CCRFlagV | cpuprotocol.CCRFlagC)
	if n {
		sr |= cpuprotocol.CCRFlagN
	}
	if z {
		sr |= cpuprotocol.CCRFlagZ
	}
	cpu.SR = sr
}

func (sc *serverConn) traceExec(pc uint32, ir uint16) error {
	text := disasm(ir)
	if len(text) > cpuprotocol.MaxStringLength {
		text = text[:cpuprotocol.MaxStringLength]
	}
	p := []byte{byte(pc >> 24), byte(pc >> 16), byte(pc >> 8), byte(pc), byte(ir >> 8), byte(ir), byte(len(text))}
	p = append(p, text...)
	_, _, err := sc.event(cpuprotocol.OpEventTraceExec, p, 0)
	return err
}

func (sc *serverConn) traceException(vector uint8, pc uint32) error {
	if !sc.cpu.TraceExc {
		return nil
	}
	p := []byte{vector, byte(pc >> 24), byte(pc >> 16), byte(pc >> 8), byte(pc)}
	_, _, err := sc.event(cpuprotocol.OpEventTraceExc, p, 0)
	return err
}

func (sc *serverConn) traceFault(f *busFault, pc uint32, ir uint16) error {
	if !sc.cpu.TraceExc {
		return nil
	}
	p := []byte{
		f.vector,
		byte(pc >> 24), byte(pc >> 16), byte(pc >> 8), byte(pc),
		byte(ir >> 8), byte(ir),
		byte(f.addr >> 24), byte(f.addr >> 16), byte(f.addr >> 8), byte(f.addr),
		f.flags,
	}
	_, _, err := sc.event(cpuprotocol.OpEventTraceExcMem, p, 0)
	return err
}

func disasm(ir uint16) string {
	switch {
	case ir == 0x4e71:
		return "nop"
	case ir == 0x4e70:
		return "reset"
	case ir == 0x4e72:
		return "stop #imm"
	case ir&0xf100 == 0x7000:
		return fmt.Sprintf("moveq #%d,d%d", int8(ir), (ir>>9)&7)
	case ir == 0x3080:
		return "move.w d0,(a0)"
	case ir == 0x3210:
		return "move.w (a0),d1"
	case ir == 0x1080:
		return "move.b d0,(a0)"
	default:
		return fmt.Sprintf("dc.w $%04x", ir)
	}
}
