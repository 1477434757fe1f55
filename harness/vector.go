// Package harness runs single-step CPU test vectors against a remote 68000
// emulator.
//
// Each vector describes the CPU and RAM state before one instruction and
// the state expected after it. The harness loads the initial state into the
// remote CPU through the wire protocol, ticks it until the instruction has
// finished, reads the state back and reports every difference.
//
// The vectors use the SingleStepTests JSON format: a file holds an array of
// tests, optionally gzip-compressed.
package harness

// PrefetchOffset is the distance between the PC stored in a vector and the
// address of the instruction under test. Vectors record the next prefetch
// address, which is 4 bytes past the instruction.
const PrefetchOffset = 4

// State is a CPU and RAM snapshot.
type State struct {
	D0 uint32 `json:"d0"`
	D1 uint32 `json:"d1"`
	D2 uint32 `json:"d2"`
	D3 uint32 `json:"d3"`
	D4 uint32 `json:"d4"`
	D5 uint32 `json:"d5"`
	D6 uint32 `json:"d6"`
	D7 uint32 `json:"d7"`
	A0 uint32 `json:"a0"`
	A1 uint32 `json:"a1"`
	A2 uint32 `json:"a2"`
	A3 uint32 `json:"a3"`
	A4 uint32 `json:"a4"`
	A5 uint32 `json:"a5"`
	A6 uint32 `json:"a6"`

	USP uint32 `json:"usp"`
	SSP uint32 `json:"ssp"`
	SR  uint16 `json:"sr"`
	PC  uint32 `json:"pc"`

	Prefetch []uint32   `json:"prefetch"` // not used by the runner
	RAM      [][]uint32 `json:"ram"`      // [[address, value], ...]
}

// Test is one test vector.
type Test struct {
	Name    string `json:"name"`
	Initial State  `json:"initial"`
	Final   State  `json:"final"`
	Length  int    `json:"length"`
}

// DataRegs returns D0-D7.
func (s *State) DataRegs() [8]uint32 {
	return [8]uint32{s.D0, s.D1, s.D2, s.D3, s.D4, s.D5, s.D6, s.D7}
}

// AddrRegs returns A0-A6. A7 is stored as USP and SSP.
func (s *State) AddrRegs() [7]uint32 {
	return [7]uint32{s.A0, s.A1, s.A2, s.A3, s.A4, s.A5, s.A6}
}

// InstructionPC returns the address of the instruction the state belongs to.
func (s *State) InstructionPC() uint32 {
	return s.PC - PrefetchOffset
}

// RAMByte is one entry of a RAM snapshot.
type RAMByte struct {
	Addr  uint32
	Value byte
}

// Bytes returns the RAM entries of the state. Malformed entries with fewer
// than two numbers are skipped.
func (s *State) Bytes() []RAMByte {
	out := make([]RAMByte, 0, len(s.RAM))
	for _, e := range s.RAM {
		if len(e) < 2 {
			continue
		}
		out = append(out, RAMByte{Addr: e[0], Value: byte(e[1])})
	}
	return out
}
