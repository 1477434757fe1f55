// =============================================================================
// help.go - Console Help System
// =============================================================================
//
// Provides the .help command. With no topic it prints a command overview;
// with a topic it prints the detailed entry for that command. Topics are
// looked up case-insensitively, and a leading dot is ignored so that
// ".help .quit" and ".help quit" show the same text.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"
)

// printHelp writes the overview, or the help entry for topic, to w.
// It returns false when topic has no entry.
func printHelp(w io.Writer, topic string) bool {
	if topic == "" {
		printHelpOverview(w)
		return true
	}

	key := strings.ToLower(strings.TrimPrefix(topic, "."))
	if alias, ok := helpAliases[key]; ok {
		key = alias
	}
	text, ok := helpTopics[key]
	if !ok {
		return false
	}
	fmt.Fprintln(w, text)
	return true
}

func printHelpOverview(w io.Writer) {
	fmt.Fprint(w, `CPU Commands:
  tick [n]            Run the CPU for n ticks (default: 1)
  unstop              Leave the STOPped state
  stopped             Show whether the CPU is stopped
  regs                Show all registers
  <reg>               Read a register (d0-d7, a0-a6, ssp, usp, pc, sr)
  <reg>=<value>       Write a register
  trace exec on|off   Report executed instructions
  trace exc on|off    Report exceptions

Memory Commands:
  mem <addr> [n]      Dump n bytes of RAM (default: 64)
  poke <addr> <b...>  Write bytes into RAM
  asm <addr> <instr>  Assemble one instruction into RAM
  load <file> <addr>  Assemble a source file into RAM

Test Commands:
  run <path> [f...]   Run test vectors, optionally filtered by name

Console Commands:
  .help [topic]       Show help (or help for a specific command)
  .quit               Exit

Numbers are decimal, or hex with a $ or 0x prefix.
`)
}

// helpAliases maps short forms to their topic.
var helpAliases = map[string]string{
	"t":    "tick",
	"r":    "regs",
	"m":    "mem",
	">":    "poke",
	"a":    "asm",
	"h":    "help",
	"?":    "help",
	"q":    "quit",
	"exit": "quit",
	"reg":  "registers",
	"d0":   "registers",
	"sr":   "registers",
	"pc":   "registers",
}

var helpTopics = map[string]string{
	"tick": `  tick [n]
    Run the CPU for n ticks (default: 1). While a tick runs the server
    asserts addresses and reads or writes the bus; the console answers
    from its RAM image and prints the bus and trace activity afterwards.
    Examples:
      tick
      tick 10`,

	"unstop": `  unstop
    Take the CPU out of the STOPped state entered by a STOP instruction.`,

	"stopped": `  stopped
    Show whether the CPU is in the STOPped state.`,

	"regs": `  regs
    Show D0-D7, A0-A6, SSP, USP, PC and SR, with the SR flags decoded.`,

	"registers": `  <reg>
  <reg>=<value>
    Read or write a single register. Registers are d0-d7, a0-a6, ssp,
    usp, pc and sr. A7 is reached through ssp and usp. SR is 16 bits.
    Examples:
      d0
      d0=$12345678
      pc=0x1000
      sr=$2700`,

	"trace": `  trace exec on|off
  trace exc on|off
    Enable or disable execution trace (one line per instruction with its
    disassembly) or exception trace (vector, PC and fault details).`,

	"mem": `  mem <addr> [count]
    Dump count bytes of the console's RAM image starting at addr
    (default: 64). Addresses wrap at the end of RAM.
    Examples:
      mem $1000
      mem 0x400 16`,

	"poke": `  poke <addr> <byte> [byte...]
    Write bytes into the console's RAM image.
    Example:
      poke $1000 $4e $71`,

	"asm": `  asm <addr> <instruction>
    Assemble a single 68000 instruction and write it into RAM at addr.
    Examples:
      asm $1000 MOVEQ #5,D2
      asm $1002 NOP`,

	"load": `  load <file> <addr>
    Assemble a 68000 source file and write the program into RAM at addr.
    Example:
      load prog.s $2000`,

	"run": `  run <path> [filter...]
    Run test vectors from a .json or .json.gz file, or from every such
    file in a directory. Only tests whose name contains one of the
    filters are run. Failures are printed with their execution log.
    Examples:
      run m68000/v1/NOP.json.gz
      run m68000/v1 ABCD SBCD`,

	"help": `  .help [topic]
    Show the command overview, or detailed help for a topic.
    Examples:
      .help
      .help tick`,

	"quit": `  .quit
    Close the connection and exit.`,
}
