// =============================================================================
// translate.go - Console Command Translation
// =============================================================================
//
// Translates console lines into requests. A request either carries protocol
// commands that are pipelined to the emulator server (register reads and
// writes, tick, unstop, trace switches) or names a local action that works
// on the client-side RAM image or the test harness (mem, poke, asm, load,
// run, regs, .help, .quit).
//
// Translation is pure: it never touches the connection. This keeps the
// parsing rules testable without a server.
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// requestKind selects what the console does with a translated line.
type requestKind int

const (
	reqNone   requestKind = iota // empty line
	reqRemote                    // send commands, print replies
	reqRegs                      // dump all registers
	reqMem                       // dump local RAM
	reqPoke                      // write bytes into local RAM
	reqAsm                       // assemble one instruction into local RAM
	reqLoad                      // assemble a source file into local RAM
	reqRun                       // run a test vector file
	reqHelp
	reqQuit
)

// request is a translated console line.
type request struct {
	kind requestKind

	// commands and labels are parallel: labels[i] names the value that
	// commands[i] reads back, or is empty for commands with no output.
	commands []cpuprotocol.Command
	labels   []string

	addr    uint32
	count   int
	data    []byte
	text    string // instruction, file path or help topic
	filters []string
}

// defaultDumpLength is the number of bytes "mem" shows without a count.
const defaultDumpLength = 64

// maxTicks bounds "tick <n>" so a typo cannot queue millions of commands.
const maxTicks = 100000

var errEmptyArgs = errors.New("missing arguments")

// translateLine parses one console line.
func translateLine(line string) (request, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return request{kind: reqNone}, nil
	}

	// Dot-commands are local to the console.
	if strings.HasPrefix(trimmed, ".") {
		return translateDotCommand(trimmed)
	}

	// "<reg>=<value>" writes a register. The name is a single word, so
	// operands such as "asm $1000 MOVE.L #1,D0" never match.
	if name, value, ok := strings.Cut(trimmed, "="); ok {
		if name = strings.TrimSpace(name); !strings.ContainsAny(name, " \t") {
			return translateRegisterWrite(name, strings.TrimSpace(value))
		}
	}

	fields := strings.Fields(trimmed)
	keyword := strings.ToLower(fields[0])
	args := fields[1:]

	if reg, ok := lookupRegister(keyword); ok {
		if len(args) != 0 {
			return request{}, fmt.Errorf("%s takes no arguments (use %s=<value> to write)", keyword, keyword)
		}
		return remote(reg.read(), reg.label), nil
	}

	switch keyword {
	case "tick", "t":
		n := 1
		if len(args) > 0 {
			v, err := parseCount(args[0])
			if err != nil {
				return request{}, err
			}
			if v > maxTicks {
				return request{}, fmt.Errorf("tick count %d exceeds %d", v, maxTicks)
			}
			n = v
		}
		req := request{kind: reqRemote}
		for range n {
			req.commands = append(req.commands, cpuprotocol.NewTickCommand())
			req.labels = append(req.labels, "")
		}
		return req, nil

	case "unstop":
		return remote(cpuprotocol.NewUnstopCommand(), ""), nil

	case "stopped":
		return remote(cpuprotocol.NewIsStoppedCommand(), "STOPPED"), nil

	case "regs", "r":
		return request{kind: reqRegs}, nil

	case "trace":
		return translateTrace(args)

	case "mem", "m":
		if len(args) == 0 || len(args) > 2 {
			return request{}, errors.New("usage: mem <addr> [count]")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return request{}, err
		}
		count := defaultDumpLength
		if len(args) == 2 {
			if count, err = parseCount(args[1]); err != nil {
				return request{}, err
			}
		}
		return request{kind: reqMem, addr: addr, count: count}, nil

	case "poke", ">":
		if len(args) < 2 {
			return request{}, errors.New("usage: poke <addr> <byte> [byte...]")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return request{}, err
		}
		data, err := parseBytes(args[1:])
		if err != nil {
			return request{}, err
		}
		return request{kind: reqPoke, addr: addr, data: data}, nil

	case "asm", "a":
		if len(args) < 2 {
			return request{}, errors.New("usage: asm <addr> <instruction>")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return request{}, err
		}
		// Keep the operands as typed; only the address is split off.
		instr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(trimmed[len(fields[0]):]), args[0]))
		return request{kind: reqAsm, addr: addr, text: instr}, nil

	case "load":
		if len(args) != 2 {
			return request{}, errors.New("usage: load <file.s> <addr>")
		}
		addr, err := parseNumber(args[1])
		if err != nil {
			return request{}, err
		}
		return request{kind: reqLoad, addr: addr, text: args[0]}, nil

	case "run":
		if len(args) == 0 {
			return request{}, errors.New("usage: run <file|dir> [filter...]")
		}
		return request{kind: reqRun, text: args[0], filters: args[1:]}, nil

	default:
		return request{}, fmt.Errorf("unknown command: %s (type .help for a list)", fields[0])
	}
}

// translateDotCommand handles .help and .quit.
func translateDotCommand(line string) (request, error) {
	keyword, topic, _ := strings.Cut(line, " ")
	switch strings.ToLower(keyword) {
	case ".help", ".h", ".?":
		return request{kind: reqHelp, text: strings.TrimSpace(topic)}, nil
	case ".quit", ".exit", ".q":
		return request{kind: reqQuit}, nil
	default:
		return request{}, fmt.Errorf("unknown command: %s (type .help for a list)", keyword)
	}
}

func translateTrace(args []string) (request, error) {
	if len(args) != 2 {
		return request{}, errors.New("usage: trace exec|exc on|off")
	}
	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "1":
		on = true
	case "off", "0":
		on = false
	default:
		return request{}, fmt.Errorf("trace: expected on or off, got %q", args[1])
	}
	switch strings.ToLower(args[0]) {
	case "exec":
		return remote(cpuprotocol.NewTraceExecCommand(on), ""), nil
	case "exc":
		return remote(cpuprotocol.NewTraceExcCommand(on), ""), nil
	default:
		return request{}, fmt.Errorf("trace: expected exec or exc, got %q", args[0])
	}
}

func translateRegisterWrite(name, value string) (request, error) {
	reg, ok := lookupRegister(strings.ToLower(name))
	if !ok {
		return request{}, fmt.Errorf("unknown register: %s", name)
	}
	if value == "" {
		return request{}, fmt.Errorf("%s: missing value", reg.label)
	}
	v, err := parseNumber(value)
	if err != nil {
		return request{}, err
	}
	if reg.word && v > 0xffff {
		return request{}, fmt.Errorf("%s: value $%X does not fit in 16 bits", reg.label, v)
	}
	return remote(reg.write(v), ""), nil
}

func remote(cmd cpuprotocol.Command, label string) request {
	return request{
		kind:     reqRemote,
		commands: []cpuprotocol.Command{cmd},
		labels:   []string{label},
	}
}

// =============================================================================
// Registers
// =============================================================================

// register describes a CPU register reachable from the console.
type register struct {
	label string
	word  bool // 16-bit (SR)
	read  func() cpuprotocol.Command
	write func(v uint32) cpuprotocol.Command
}

// registers lists every console register in display order.
var registers = func() []register {
	var regs []register
	for i := range uint8(cpuprotocol.NumDataRegs) {
		regs = append(regs, register{
			label: fmt.Sprintf("D%d", i),
			read:  func() cpuprotocol.Command { return cpuprotocol.NewReadDregCommand(i) },
			write: func(v uint32) cpuprotocol.Command { return cpuprotocol.NewWriteDregCommand(i, v) },
		})
	}
	for i := range uint8(cpuprotocol.NumAddressRegs) {
		regs = append(regs, register{
			label: fmt.Sprintf("A%d", i),
			read:  func() cpuprotocol.Command { return cpuprotocol.NewReadAregCommand(i) },
			write: func(v uint32) cpuprotocol.Command { return cpuprotocol.NewWriteAregCommand(i, v) },
		})
	}
	return append(regs,
		register{label: "SSP", read: cpuprotocol.NewReadSSPCommand, write: cpuprotocol.NewWriteSSPCommand},
		register{label: "USP", read: cpuprotocol.NewReadUSPCommand, write: cpuprotocol.NewWriteUSPCommand},
		register{label: "PC", read: cpuprotocol.NewReadPCCommand, write: cpuprotocol.NewWritePCCommand},
		register{
			label: "SR",
			word:  true,
			read:  cpuprotocol.NewReadSRCommand,
			write: func(v uint32) cpuprotocol.Command { return cpuprotocol.NewWriteSRCommand(uint16(v)) },
		},
	)
}()

// lookupRegister finds a register by its lowercase console name.
func lookupRegister(name string) (register, bool) {
	for _, r := range registers {
		if strings.ToLower(r.label) == name {
			return r, true
		}
	}
	return register{}, false
}

// =============================================================================
// Numbers
// =============================================================================

// parseNumber parses $hex, 0xhex or decimal into a 32-bit value.
func parseNumber(s string) (uint32, error) {
	digits, base := s, 10
	switch {
	case strings.HasPrefix(s, "$"):
		digits, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		digits, base = s[2:], 16
	}
	if digits == "" {
		return 0, fmt.Errorf("invalid number: %q", s)
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %q", s)
	}
	return uint32(v), nil
}

// parseCount parses a positive count.
func parseCount(s string) (int, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("count must be positive: %q", s)
	}
	return int(v), nil
}

// parseBytes parses each argument as one byte value.
func parseBytes(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errEmptyArgs
	}
	out := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := parseNumber(a)
		if err != nil {
			return nil, err
		}
		if v > 0xff {
			return nil, fmt.Errorf("value %s does not fit in a byte", a)
		}
		out = append(out, byte(v))
	}
	return out, nil
}
