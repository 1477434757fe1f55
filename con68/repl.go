// =============================================================================
// repl.go - Interactive Console
// =============================================================================
//
// The console drives the remote CPU by hand. Each line is translated into a
// request (translate.go); remote requests are pipelined to the server and
// their replies printed, local requests work on the console's RAM image.
//
// The RAM image is the one the server's bus events are answered from, so a
// program written with "poke" or "asm" is what the CPU fetches on the next
// "tick". Bus and trace activity produced while a request is in flight is
// printed once the request completes.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	asm "github.com/jenska/m68kasm"

	"github.com/inseo-oh/con68/cpuprotocol"
	"github.com/inseo-oh/con68/harness"
)

// consolePrompt is shown before every line.
const consolePrompt = "con68> "

// srFlagT is the trace bit of the status register.
const srFlagT uint16 = 1 << 15

// console holds the state of an interactive session.
type console struct {
	client *cpuprotocol.Client
	runner *harness.Runner
	out    io.Writer
	errOut io.Writer
}

func newConsole(client *cpuprotocol.Client, runner *harness.Runner, out, errOut io.Writer) *console {
	return &console{client: client, runner: runner, out: out, errOut: errOut}
}

// runREPL reads lines from src until EOF or .quit.
func runREPL(ctx context.Context, src lineSource, c *console) {
	for {
		line, err := src.GetLine(consolePrompt)
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(c.errOut, "Error: %v\n", err)
			}
			fmt.Fprintln(c.out)
			return
		}

		req, err := translateLine(line)
		if err != nil {
			fmt.Fprintf(c.errOut, "Error: %v\n", err)
			continue
		}
		if req.kind == reqQuit {
			return
		}
		if err := c.execute(ctx, req); err != nil {
			fmt.Fprintf(c.errOut, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// execute carries out a translated request.
func (c *console) execute(ctx context.Context, req request) error {
	switch req.kind {
	case reqNone:
		return nil
	case reqRemote:
		return c.sendCommands(ctx, req)
	case reqRegs:
		return c.showRegisters(ctx)
	case reqMem:
		c.dump(req.addr, req.count)
		return nil
	case reqPoke:
		c.runner.Memory.Write(req.addr, req.data)
		return nil
	case reqAsm:
		code, err := asm.AssembleString(req.text + "\n")
		if err != nil {
			return fmt.Errorf("assemble %q: %w", req.text, err)
		}
		c.runner.Memory.Write(req.addr, code)
		fmt.Fprintf(c.out, "%06X: % X  %s\n", req.addr, code, req.text)
		return nil
	case reqLoad:
		code, err := asm.AssembleFile(req.text)
		if err != nil {
			return fmt.Errorf("assemble %s: %w", req.text, err)
		}
		c.runner.Memory.Write(req.addr, code)
		fmt.Fprintf(c.out, "Loaded %d bytes at $%06X\n", len(code), req.addr)
		return nil
	case reqRun:
		session, err := runTests(ctx, c.runner, req.text, req.filters, c.out, c.errOut)
		if session.summary != nil {
			fmt.Fprintln(c.out, session.summary.String())
			fmt.Fprintln(c.out, session.summary.Duration())
		}
		return err
	case reqHelp:
		if !printHelp(c.out, req.text) {
			return fmt.Errorf("no help for '%s'. Type .help to see available commands", req.text)
		}
		return nil
	default:
		return fmt.Errorf("unhandled request kind %d", req.kind)
	}
}

// sendCommands pipelines the request's commands, then prints the values
// they read back and the bus and trace activity they caused.
func (c *console) sendCommands(ctx context.Context, req request) error {
	log := c.runner.Log
	log.Reset()

	calls := make([]*cpuprotocol.Call, len(req.commands))
	for i, cmd := range req.commands {
		calls[i] = c.client.Submit(cmd)
	}

	var errs []error
	var values []string
	for i, call := range calls {
		f, err := call.Wait(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.commands[i], err))
			continue
		}
		if label := req.labels[i]; label != "" {
			values = append(values, formatValue(label, req.commands[i], f))
		}
	}

	for _, line := range log.Lines() {
		fmt.Fprintln(c.out, line)
	}
	for _, v := range values {
		fmt.Fprintln(c.out, v)
	}
	return errors.Join(errs...)
}

// formatValue renders the value a read command returned.
func formatValue(label string, cmd cpuprotocol.Command, f cpuprotocol.Fields) string {
	switch cmd.Op {
	case cpuprotocol.OpIsStopped:
		if f.Byte(0) != 0 {
			return label + ": yes"
		}
		return label + ": no"
	case cpuprotocol.OpReadSR:
		return fmt.Sprintf("%s=$%04X %s", label, f.Word(0), formatSR(f.Word(0)))
	default:
		return fmt.Sprintf("%s=$%08X", label, f.Long(0))
	}
}

// formatSR decodes the status register, e.g. "(S I=7 --Z--)".
func formatSR(sr uint16) string {
	var sb strings.Builder
	sb.WriteByte('(')
	if sr&srFlagT != 0 {
		sb.WriteString("T ")
	}
	if sr&cpuprotocol.SRFlagS != 0 {
		sb.WriteString("S ")
	} else {
		sb.WriteString("U ")
	}
	fmt.Fprintf(&sb, "I=%d ", (sr>>8)&7)

	flags := []struct {
		mask uint16
		name byte
	}{
		{cpuprotocol.CCRFlagX, 'X'},
		{cpuprotocol.CCRFlagN, 'N'},
		{cpuprotocol.CCRFlagZ, 'Z'},
		{cpuprotocol.CCRFlagV, 'V'},
		{cpuprotocol.CCRFlagC, 'C'},
	}
	for _, fl := range flags {
		if sr&fl.mask != 0 {
			sb.WriteByte(fl.name)
		} else {
			sb.WriteByte('-')
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// showRegisters pipelines reads of every register and prints them four to
// a line.
func (c *console) showRegisters(ctx context.Context) error {
	calls := make([]*cpuprotocol.Call, len(registers))
	for i, r := range registers {
		calls[i] = c.client.Submit(r.read())
	}

	var errs []error
	var line []string
	flush := func() {
		if len(line) > 0 {
			fmt.Fprintln(c.out, strings.Join(line, " "))
			line = line[:0]
		}
	}
	for i, call := range calls {
		r := registers[i]
		f, err := call.Wait(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", r.label, err))
			continue
		}
		if r.word {
			flush()
			line = append(line, formatValue(r.label, r.read(), f))
			continue
		}
		line = append(line, formatValue(r.label, r.read(), f))
		// Start a new line after D3, D7, A3 and A6.
		if r.label == "D3" || r.label == "D7" || r.label == "A3" || r.label == "A6" {
			flush()
		}
	}
	flush()
	return errors.Join(errs...)
}

// dump prints count bytes of RAM from addr, 16 to a line.
func (c *console) dump(addr uint32, count int) {
	data := c.runner.Memory.Read(addr, count)
	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		row := data[off:end]

		var ascii strings.Builder
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		fmt.Fprintf(c.out, "%06X: %-47s  %s\n", addr+uint32(off), fmt.Sprintf("% X", row), ascii.String())
	}
}
