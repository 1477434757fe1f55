// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The console reads its input through a LineEditor, which picks one of two
// input methods when it is created:
//
//   - Interactive mode (stdin is a TTY): ergochat/readline provides line
//     editing with Emacs keybindings, persistent history and Ctrl-R search.
//   - Non-interactive mode (piped input, scripts, Emacs comint): a plain
//     bufio.Scanner reads stdin line by line and the prompt is printed by
//     hand.
//
// History is kept in ~/.con68_history, limited to 500 entries.
//
// =============================================================================

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	// historyFileName is the name of the history file in the user's home
	// directory.
	historyFileName = ".con68_history"

	// historySize is the maximum number of history entries to retain.
	historySize = 500
)

// GO CONCEPT: Interfaces and Structural Typing
// ---------------------------------------------
// The REPL only needs something that returns a line for a prompt. It
// declares that need as the lineSource interface, and *LineEditor satisfies
// it without saying so. Tests hand the REPL a scripted source instead of a
// terminal.
type lineSource interface {
	GetLine(prompt string) (string, error)
}

// LineEditor wraps line editing with dual-mode operation.
type LineEditor struct {
	// interactive is true when stdin is a TTY and we are not inside Emacs.
	interactive bool

	// rl is the readline instance used in interactive mode; nil otherwise.
	rl *readline.Instance

	// scanner reads stdin in non-interactive mode; nil otherwise.
	scanner *bufio.Scanner

	// out receives the prompt in non-interactive mode.
	out io.Writer
}

// NewLineEditor creates a new LineEditor with automatic mode detection.
//
// The INSIDE_EMACS environment variable forces non-interactive mode because
// Emacs provides its own line editing.
func NewLineEditor() *LineEditor {
	isInteractive := term.IsTerminal(int(os.Stdin.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return newScannerEditor(os.Stdin, os.Stdout)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:  historyPath(),
		HistoryLimit: historySize,

		// Lines are saved by hand so that blank lines stay out of the
		// history; readline still writes the file on Close.
		DisableAutoSaveHistory: true,

		// Set before each read.
		Prompt: "",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return newScannerEditor(os.Stdin, os.Stdout)
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
		out:         os.Stdout,
	}
}

// newScannerEditor creates a non-interactive editor reading from r and
// printing prompts to w.
func newScannerEditor(r io.Reader, w io.Writer) *LineEditor {
	return &LineEditor{
		scanner: bufio.NewScanner(r),
		out:     w,
	}
}

// historyPath returns the location of the history file.
func historyPath() string {
	return filepath.Join(homeDir(), historyFileName)
}

// GetLine reads a line of input with the given prompt.
//
// It returns ("", io.EOF) when input is exhausted or the user presses
// Ctrl-D. Ctrl-C at the prompt is treated the same way.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	// The prompt is still printed: Emacs comint matches it to find where
	// user input begins.
	fmt.Fprint(le.out, prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close releases the readline instance, which saves the history. It is
// safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether the editor is running on a terminal.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
