package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// DefaultTimeLimit is how long a single test may run before it is
// considered stuck.
const DefaultTimeLimit = 1 * time.Second

// Outcome classifies how a test run ended, independent of register and
// memory mismatches.
type Outcome int

const (
	// OutcomeCompleted means the CPU stopped or reached the expected PC.
	OutcomeCompleted Outcome = iota
	// OutcomeStateLoadError means the initial state could not be loaded.
	// The test was skipped.
	OutcomeStateLoadError
	// OutcomeTimeout means the expected PC was not reached within the
	// time limit.
	OutcomeTimeout
	// OutcomeCPUError means a tick failed.
	OutcomeCPUError
	// OutcomeCompareError means the final state could not be read back.
	OutcomeCompareError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStateLoadError:
		return "state load error"
	case OutcomeTimeout:
		return "execution timeout"
	case OutcomeCPUError:
		return "CPU error"
	case OutcomeCompareError:
		return "compare error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Mismatch is a register or memory byte whose final value differs from the
// expected one.
type Mismatch struct {
	What     string // "D0", "SR", "Memory at 1000", ...
	Expected uint32
	Got      uint32
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s mismatch: Expected %x, Got %x", m.What, m.Expected, m.Got)
}

// Result is the outcome of one test.
type Result struct {
	File       string
	Name       string
	Outcome    Outcome
	Err        error // set for every outcome but OutcomeCompleted
	FinalPC    uint32
	Mismatches []Mismatch
	Log        []string
}

// Passed reports whether the test completed without mismatches.
func (r *Result) Passed() bool {
	return r.Outcome == OutcomeCompleted && len(r.Mismatches) == 0
}

func (r *Result) mismatch(what string, expected, got uint32) {
	r.Mismatches = append(r.Mismatches, Mismatch{What: what, Expected: expected, Got: got})
}

// Runner runs tests on a remote CPU. The remote CPU's bus is served by
// Memory and its trace events are recorded in Log.
type Runner struct {
	Client    *cpuprotocol.Client
	Memory    *cpuprotocol.Memory
	Log       *ExecLog
	TimeLimit time.Duration
}

// NewRunner creates a runner and installs mem and a fresh ExecLog as the
// client's bus and trace handlers.
func NewRunner(client *cpuprotocol.Client, mem *cpuprotocol.Memory) *Runner {
	r := &Runner{
		Client:    client,
		Memory:    mem,
		Log:       &ExecLog{},
		TimeLimit: DefaultTimeLimit,
	}
	mem.SetObserver(r.Log)
	client.SetBusHandler(mem)
	client.SetTraceHandler(r.Log)
	return r
}

// Run runs a single test.
func (r *Runner) Run(ctx context.Context, file string, t Test) Result {
	if r.Log != nil {
		r.Log.Reset()
	}
	res := r.run(ctx, file, t)
	if r.Log != nil {
		res.Log = r.Log.Lines()
	}
	return res
}

func (r *Runner) run(ctx context.Context, file string, t Test) Result {
	res := Result{File: file, Name: t.Name, FinalPC: t.Final.InstructionPC()}

	if err := r.load(ctx, &t); err != nil {
		res.Outcome = OutcomeStateLoadError
		res.Err = err
		return res
	}

	if err := r.execute(ctx, res.FinalPC); err != nil {
		res.Err = err
		if errors.Is(err, errTimeLimit) {
			res.Outcome = OutcomeTimeout
		} else {
			res.Outcome = OutcomeCPUError
		}
	}

	// The final state is compared even after a failed run, so that the
	// report shows how far the CPU got.
	if err := r.compare(ctx, &t, &res); err != nil {
		if res.Outcome == OutcomeCompleted {
			res.Outcome = OutcomeCompareError
			res.Err = err
		}
	}
	return res
}

// load pipelines the register writes and prepares RAM.
func (r *Runner) load(ctx context.Context, t *Test) error {
	in := &t.Initial
	c := r.Client

	var calls []*cpuprotocol.Call
	for i, v := range in.DataRegs() {
		calls = append(calls, c.Submit(cpuprotocol.NewWriteDregCommand(uint8(i), v)))
	}
	for i, v := range in.AddrRegs() {
		calls = append(calls, c.Submit(cpuprotocol.NewWriteAregCommand(uint8(i), v)))
	}
	calls = append(calls,
		c.Submit(cpuprotocol.NewWriteSSPCommand(in.SSP)),
		c.Submit(cpuprotocol.NewWriteUSPCommand(in.USP)),
		c.Submit(cpuprotocol.NewWritePCCommand(in.InstructionPC())),
		c.Submit(cpuprotocol.NewWriteSRCommand(in.SR)),
	)

	// Bytes the test expects to see are cleared first, so that leftovers
	// from earlier tests cannot make a missing write look correct.
	for _, b := range t.Final.Bytes() {
		r.Memory.SetByte(b.Addr, 0)
	}
	for _, b := range in.Bytes() {
		r.Memory.SetByte(b.Addr, b.Value)
	}

	if err := cpuprotocol.WaitAll(ctx, calls...); err != nil {
		return fmt.Errorf("state load: %w", err)
	}
	return nil
}

var errTimeLimit = errors.New("execution timeout")

// execute ticks the CPU until it stops or reaches finalPC.
func (r *Runner) execute(ctx context.Context, finalPC uint32) error {
	c := r.Client
	if err := c.Unstop(ctx); err != nil {
		return fmt.Errorf("unstop: %w", err)
	}

	limit := r.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	start := time.Now()

	for {
		if time.Since(start) >= limit {
			return fmt.Errorf("%w (Expected final PC: %x)", errTimeLimit, finalPC)
		}
		if err := c.Tick(ctx); err != nil {
			return fmt.Errorf("tick: %w", err)
		}

		stopped, err := c.IsStopped(ctx)
		if err != nil {
			return fmt.Errorf("is stopped: %w", err)
		}
		if stopped {
			return nil
		}

		pc, err := c.ReadPC(ctx)
		if err != nil {
			return fmt.Errorf("read pc: %w", err)
		}
		if pc == finalPC {
			return nil
		}
	}
}

// compare pipelines the register reads and checks registers and RAM
// against the final state.
func (r *Runner) compare(ctx context.Context, t *Test, res *Result) error {
	want := &t.Final
	c := r.Client

	type regRead struct {
		name string
		want uint32
		mask uint32
		call *cpuprotocol.Call
	}
	var reads []regRead
	add := func(name string, want, mask uint32, cmd cpuprotocol.Command) {
		reads = append(reads, regRead{name, want & mask, mask, c.Submit(cmd)})
	}

	for i, v := range want.DataRegs() {
		add(fmt.Sprintf("D%d", i), v, 0xffffffff, cpuprotocol.NewReadDregCommand(uint8(i)))
	}
	for i, v := range want.AddrRegs() {
		add(fmt.Sprintf("A%d", i), v, 0xffffffff, cpuprotocol.NewReadAregCommand(uint8(i)))
	}
	add("SSP", want.SSP, 0xffffffff, cpuprotocol.NewReadSSPCommand())
	add("USP", want.USP, 0xffffffff, cpuprotocol.NewReadUSPCommand())
	add("PC", want.InstructionPC(), 0xffffffff, cpuprotocol.NewReadPCCommand())
	add("SR", uint32(want.SR), uint32(^UndefinedFlags(t.Name)), cpuprotocol.NewReadSRCommand())

	var errs []error
	for _, rd := range reads {
		f, err := rd.call.Wait(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", rd.name, err))
			continue
		}
		got := f.Long(0)
		if rd.name == "SR" {
			got = uint32(f.Word(0))
		}
		got &= rd.mask
		if got != rd.want {
			res.mismatch(rd.name, rd.want, got)
		}
	}

	for _, b := range want.Bytes() {
		if got := r.Memory.ByteAt(b.Addr); got != b.Value {
			res.mismatch(fmt.Sprintf("Memory at %x", b.Addr), uint32(b.Value), uint32(got))
		}
	}
	return errors.Join(errs...)
}

// RunFile loads a vector file and runs the tests that match filters,
// passing each result to report as soon as it is known.
func (r *Runner) RunFile(ctx context.Context, path string, filters []string, report func(Result)) error {
	tests, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, t := range Filter(tests, filters) {
		if err := ctx.Err(); err != nil {
			return err
		}
		report(r.Run(ctx, path, t))
	}
	return nil
}
