package cpuprotocol

import (
	"testing"
)

type recordingObserver struct {
	accesses []BusAccess
	resets   int
}

func (o *recordingObserver) OnBusAccess(acc BusAccess) { o.accesses = append(o.accesses, acc) }
func (o *recordingObserver) OnReset()                  { o.resets++ }

func TestMemoryWordAccess(t *testing.T) {
	m := NewMemory(0x10000)

	m.OnAddressAsserted(0x1000)
	m.OnBusWrite(LaneBoth, 0xabcd)

	if m.ByteAt(0x1000) != 0xab || m.ByteAt(0x1001) != 0xcd {
		t.Fatalf("RAM = %02x %02x, want ab cd", m.ByteAt(0x1000), m.ByteAt(0x1001))
	}

	m.OnAddressAsserted(0x1000)
	if got := m.OnBusRead(LaneUpper); got != 0xab00 {
		t.Errorf("upper read = %#04x, want 0xab00", got)
	}
	if got := m.OnBusRead(LaneLower); got != 0x00cd {
		t.Errorf("lower read = %#04x, want 0x00cd", got)
	}
	if got := m.OnBusRead(LaneBoth); got != 0xabcd {
		t.Errorf("word read = %#04x, want 0xabcd", got)
	}
}

func TestMemoryLaneMasking(t *testing.T) {
	tests := []struct {
		name     string
		lanes    Lanes
		value    uint16
		expected [2]byte
	}{
		{"upper only", LaneUpper, 0x1234, [2]byte{0x12, 0xee}},
		{"lower only", LaneLower, 0x1234, [2]byte{0xee, 0x34}},
		{"both", LaneBoth, 0x1234, [2]byte{0x12, 0x34}},
		{"none", 0, 0x1234, [2]byte{0xee, 0xee}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemory(16)
			m.Write(4, []byte{0xee, 0xee})

			m.OnAddressAsserted(4)
			m.OnBusWrite(tt.lanes, tt.value)

			got := [2]byte{m.ByteAt(4), m.ByteAt(5)}
			if got != tt.expected {
				t.Errorf("got % x, want % x", got, tt.expected)
			}
		})
	}
}

func TestMemoryWraps(t *testing.T) {
	m := NewMemory(16)
	m.OnAddressAsserted(15)
	m.OnBusWrite(LaneBoth, 0x1122)

	if m.ByteAt(15) != 0x11 || m.ByteAt(0) != 0x22 {
		t.Errorf("RAM = %02x %02x, want 11 22", m.ByteAt(15), m.ByteAt(0))
	}
	if m.ByteAt(16) != 0x22 {
		t.Errorf("address 16 should alias address 0")
	}
}

func TestMemoryObserver(t *testing.T) {
	m := NewMemory(16)
	obs := &recordingObserver{}
	m.SetObserver(obs)

	m.OnAddressAsserted(2)
	m.OnBusWrite(LaneLower, 0x0055)
	m.OnBusRead(LaneBoth)
	m.OnReset()

	if len(obs.accesses) != 2 {
		t.Fatalf("got %d accesses, want 2", len(obs.accesses))
	}
	w, r := obs.accesses[0], obs.accesses[1]
	if !w.Write || w.Addr != 2 || w.Lanes != LaneLower || w.Value != 0x0055 {
		t.Errorf("write access = %+v", w)
	}
	if r.Write || r.Addr != 2 || r.Value != 0x0055 {
		t.Errorf("read access = %+v", r)
	}
	if obs.resets != 1 {
		t.Errorf("resets = %d, want 1", obs.resets)
	}
}

func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory(32)
	m.Write(8, []byte{1, 2, 3})
	m.SetByte(11, 4)

	got := m.Read(8, 4)
	for i, b := range []byte{1, 2, 3, 4} {
		if got[i] != b {
			t.Errorf("byte %d = %d, want %d", i, got[i], b)
		}
	}
}

func TestNewMemoryFromEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for empty RAM")
		}
	}()
	NewMemoryFrom(nil)
}
