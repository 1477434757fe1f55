// =============================================================================
// lineeditor_test.go - Tests for Line Editor (lineeditor.go)
// =============================================================================
//
// The interactive path needs a real TTY, so these tests exercise the
// non-interactive path: once with the constructor on a piped stdin, and
// otherwise with newScannerEditor on in-memory readers.
//
// =============================================================================

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLineEditorNonInteractive(t *testing.T) {
	oldStdin := os.Stdin
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdin = reader
	t.Cleanup(func() {
		os.Stdin = oldStdin
		reader.Close()
	})

	editor := NewLineEditor()
	defer editor.Close()

	if editor.IsInteractive() {
		t.Fatal("editor on a pipe should not be interactive")
	}
	if editor.rl != nil || editor.scanner == nil {
		t.Error("non-interactive editor should use a scanner, not readline")
	}

	fmt.Fprint(writer, "tick\n")
	writer.Close()

	line, err := editor.GetLine("")
	if err != nil || line != "tick" {
		t.Errorf("GetLine() = %q, %v", line, err)
	}
}

func TestGetLineReadsLines(t *testing.T) {
	var prompts bytes.Buffer
	editor := newScannerEditor(strings.NewReader("d0\n\n  regs  \nlast"), &prompts)

	want := []string{"d0", "", "  regs  ", "last"}
	for i, w := range want {
		line, err := editor.GetLine("con68> ")
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if line != w {
			t.Errorf("line %d = %q, want %q", i, line, w)
		}
	}

	if _, err := editor.GetLine("con68> "); err != io.EOF {
		t.Errorf("after last line err = %v, want io.EOF", err)
	}

	if got := strings.Count(prompts.String(), "con68> "); got != len(want)+1 {
		t.Errorf("prompt printed %d times, want %d", got, len(want)+1)
	}
}

func TestGetLineEmptyInput(t *testing.T) {
	editor := newScannerEditor(strings.NewReader(""), io.Discard)
	if _, err := editor.GetLine("> "); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestGetLineReadError(t *testing.T) {
	editor := newScannerEditor(failingReader{}, io.Discard)
	if _, err := editor.GetLine("> "); err != io.ErrClosedPipe {
		t.Errorf("err = %v, want io.ErrClosedPipe", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	editor := newScannerEditor(strings.NewReader(""), io.Discard)
	editor.Close()
	editor.Close()
}

func TestHistoryPath(t *testing.T) {
	if historyFileName != ".con68_history" {
		t.Errorf("historyFileName = %q", historyFileName)
	}
	if historySize <= 0 {
		t.Errorf("historySize = %d, want positive", historySize)
	}
	if got := historyPath(); filepath.Base(got) != historyFileName {
		t.Errorf("historyPath() = %q", got)
	}
}
