package harness

import (
	"strings"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// UndefinedFlags returns the condition code bits that the 68000 leaves
// undefined for the instruction named in a test name. Those bits are
// masked out of both sides before SR is compared.
//
// Test names look like "e502 ASL.b Q, D2": the mnemonic is surrounded by
// spaces, possibly with a size suffix.
func UndefinedFlags(testName string) uint16 {
	switch {
	case hasMnemonic(testName, "ABCD"), hasMnemonic(testName, "SBCD"), hasMnemonic(testName, "NBCD"):
		return cpuprotocol.CCRFlagN | cpuprotocol.CCRFlagZ
	case hasMnemonic(testName, "CHK"):
		return cpuprotocol.CCRFlagZ | cpuprotocol.CCRFlagV | cpuprotocol.CCRFlagC
	case hasMnemonic(testName, "DIVS"):
		return cpuprotocol.CCRFlagN | cpuprotocol.CCRFlagZ
	}
	return 0
}

func hasMnemonic(name, mnemonic string) bool {
	return strings.Contains(name, " "+mnemonic+" ") || strings.Contains(name, " "+mnemonic+".")
}
