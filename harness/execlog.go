package harness

import (
	"fmt"
	"sync"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// ExecLog records what the remote CPU did during a test: executed
// instructions, exceptions, bus transfers and RESET. It is printed when a
// test fails.
//
// ExecLog implements cpuprotocol.TraceHandler and cpuprotocol.BusObserver.
type ExecLog struct {
	mu    sync.Mutex
	lines []string
}

// Reset clears the log.
func (l *ExecLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}

// Lines returns a copy of the recorded lines.
func (l *ExecLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *ExecLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *ExecLog) OnTraceExec(ev cpuprotocol.TraceExec) {
	l.add(" EXEC | pc=%x ir=%x %s", ev.PC, ev.IR, ev.Disasm)
}

func (l *ExecLog) OnTraceException(ev cpuprotocol.TraceException) {
	if ev.HasFault {
		l.add(" !EXC | exc=%x pc=%x ir=%x errAddr=%x errFlags=%x",
			ev.Vector, ev.PC, ev.IR, ev.FaultAddr, ev.FaultFlags)
		return
	}
	l.add(" !EXC | exc=%x pc=%x", ev.Vector, ev.PC)
}

func (l *ExecLog) OnBusAccess(acc cpuprotocol.BusAccess) {
	dir := "R"
	if acc.Write {
		dir = "W"
	}
	l.add("  BUS | %s addr=%x ds=%d val=%x", dir, acc.Addr, uint8(acc.Lanes), acc.Value)
}

func (l *ExecLog) OnReset() {
	l.add("RESET |")
}
