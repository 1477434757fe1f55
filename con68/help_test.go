package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpOverviewListsCommands(t *testing.T) {
	var buf bytes.Buffer
	if !printHelp(&buf, "") {
		t.Fatal("printHelp(\"\") returned false")
	}
	out := buf.String()

	for _, cmd := range []string{"tick", "unstop", "stopped", "regs", "<reg>=<value>", "trace exec", "trace exc", "mem", "poke", "asm", "load", "run", ".help", ".quit"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("overview does not mention %q", cmd)
		}
	}
}

func TestHelpTopics(t *testing.T) {
	tests := []struct {
		topic    string
		contains string
	}{
		{"tick", "tick [n]"},
		{"TICK", "tick [n]"},
		{"t", "tick [n]"},
		{"registers", "<reg>=<value>"},
		{"d0", "<reg>=<value>"},
		{"trace", "trace exc on|off"},
		{"mem", "mem <addr> [count]"},
		{"poke", "poke <addr>"},
		{"asm", "asm <addr> <instruction>"},
		{"load", "load <file> <addr>"},
		{"run", "run <path> [filter...]"},
		{".help", ".help [topic]"},
		{".quit", ".quit"},
		{"exit", ".quit"},
	}

	for _, tc := range tests {
		t.Run(tc.topic, func(t *testing.T) {
			var buf bytes.Buffer
			if !printHelp(&buf, tc.topic) {
				t.Fatalf("printHelp(%q) returned false", tc.topic)
			}
			if !strings.Contains(buf.String(), tc.contains) {
				t.Errorf("help for %q = %q, want it to contain %q", tc.topic, buf.String(), tc.contains)
			}
		})
	}
}

func TestHelpTopicUnknown(t *testing.T) {
	var buf bytes.Buffer
	if printHelp(&buf, "nosuchcommand") {
		t.Error("printHelp returned true for an unknown topic")
	}
	if buf.Len() != 0 {
		t.Errorf("unknown topic printed %q", buf.String())
	}
}

// Every alias must point at a topic that exists.
func TestHelpAliasesResolve(t *testing.T) {
	for alias, topic := range helpAliases {
		if _, ok := helpTopics[topic]; !ok {
			t.Errorf("alias %q points at missing topic %q", alias, topic)
		}
	}
}
