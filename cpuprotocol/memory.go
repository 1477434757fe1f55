package cpuprotocol

import "sync"

// BusAccess describes one data bus transfer seen by Memory.
type BusAccess struct {
	Write bool
	Addr  uint32 // latched address
	Lanes Lanes
	Value uint16 // value read or written; inactive lanes are zero on reads
}

// BusObserver is notified of every transfer Memory serves.
type BusObserver interface {
	OnBusAccess(acc BusAccess)
	OnReset()
}

// Memory is a flat RAM image behind the remote CPU's data bus. It latches
// the most recently asserted address and serves 16-bit transfers from the
// two bytes at [addr, addr+1], honoring the byte lanes.
//
// The RAM slice is owned by the caller; Memory only reads and writes it.
// Addresses past the end of RAM wrap around.
type Memory struct {
	mu       sync.Mutex
	ram      []byte
	addr     uint32
	observer BusObserver
}

// NewMemory creates a Memory backed by a new zeroed RAM image of size bytes.
func NewMemory(size int) *Memory {
	return NewMemoryFrom(make([]byte, size))
}

// NewMemoryFrom creates a Memory backed by ram. ram must not be empty.
func NewMemoryFrom(ram []byte) *Memory {
	if len(ram) == 0 {
		panic("cpuprotocol: empty RAM image")
	}
	return &Memory{ram: ram}
}

// SetObserver installs an observer for bus transfers. Pass nil to remove it.
func (m *Memory) SetObserver(o BusObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// Size returns the size of the RAM image in bytes.
func (m *Memory) Size() int {
	return len(m.ram)
}

// Address returns the latched address.
func (m *Memory) Address() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *Memory) index(addr uint32) int {
	return int(uint64(addr) % uint64(len(m.ram)))
}

// OnAddressAsserted latches addr. RAM spans the whole address space, so a
// device always responds.
func (m *Memory) OnAddressAsserted(addr uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addr = addr
	return true
}

// OnBusRead assembles a word from the latched address. Bits 15-8 come from
// ram[addr] if the upper lane is active, bits 7-0 from ram[addr+1] if the
// lower lane is active; inactive lanes read as zero.
func (m *Memory) OnBusRead(lanes Lanes) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var v uint16
	if lanes.Upper() {
		v |= uint16(m.ram[m.index(m.addr)]) << 8
	}
	if lanes.Lower() {
		v |= uint16(m.ram[m.index(m.addr+1)])
	}
	if m.observer != nil {
		m.observer.OnBusAccess(BusAccess{Addr: m.addr, Lanes: lanes, Value: v})
	}
	return v
}

// OnBusWrite stores the high byte of v at ram[addr] if the upper lane is
// active and the low byte at ram[addr+1] if the lower lane is active.
// Inactive lanes leave RAM untouched.
func (m *Memory) OnBusWrite(lanes Lanes, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lanes.Upper() {
		m.ram[m.index(m.addr)] = byte(v >> 8)
	}
	if lanes.Lower() {
		m.ram[m.index(m.addr+1)] = byte(v)
	}
	if m.observer != nil {
		m.observer.OnBusAccess(BusAccess{Write: true, Addr: m.addr, Lanes: lanes, Value: v})
	}
}

// OnReset forwards the RESET signal to the observer. RAM is not affected.
func (m *Memory) OnReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.observer != nil {
		m.observer.OnReset()
	}
}

// ByteAt returns the RAM byte at addr.
func (m *Memory) ByteAt(addr uint32) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ram[m.index(addr)]
}

// SetByte stores v at addr.
func (m *Memory) SetByte(addr uint32, v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ram[m.index(addr)] = v
}

// Write copies data into RAM starting at addr.
func (m *Memory) Write(addr uint32, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		m.ram[m.index(addr+uint32(i))] = b
	}
}

// Read returns a copy of n RAM bytes starting at addr.
func (m *Memory) Read(addr uint32, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = m.ram[m.index(addr+uint32(i))]
	}
	return out
}
