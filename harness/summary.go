package harness

import (
	"fmt"
	"io"
	"time"
)

// Summary counts test results.
type Summary struct {
	Passed int
	Failed int
	// Mismatched counts the failed tests that reported at least one
	// register or memory mismatch.
	Mismatched int

	start   time.Time
	Elapsed time.Duration
}

// NewSummary starts the clock of a test session.
func NewSummary() *Summary {
	return &Summary{start: time.Now()}
}

// Add counts a result.
func (s *Summary) Add(r Result) {
	if r.Passed() {
		s.Passed++
		return
	}
	s.Failed++
	if len(r.Mismatches) > 0 {
		s.Mismatched++
	}
}

// Finish stops the clock.
func (s *Summary) Finish() {
	s.Elapsed = time.Since(s.start)
}

// String returns the final report line.
func (s *Summary) String() string {
	return fmt.Sprintf("TEST FINISHED: %d passed, %d failed(%d mismatches)", s.Passed, s.Failed, s.Mismatched)
}

// Duration returns the elapsed wall time as a report line.
func (s *Summary) Duration() string {
	took := int(s.Elapsed / time.Second)
	return fmt.Sprintf("Tests took %d minutes %d seconds", took/60, took%60)
}

// WriteFailure prints the report of a failed test: why it failed, the
// mismatches, and the execution log.
func WriteFailure(w io.Writer, r Result) {
	switch r.Outcome {
	case OutcomeStateLoadError:
		fmt.Fprintln(w, "State load error! Skipping this test...")
		fmt.Fprintf(w, "%v\n", r.Err)
	case OutcomeTimeout:
		fmt.Fprintf(w, ">>> Execution timeout (Expected final PC: %x)\n", r.FinalPC)
	case OutcomeCPUError:
		fmt.Fprintln(w, ">>> CPU Error")
		fmt.Fprintf(w, "%v\n", r.Err)
	case OutcomeCompareError:
		fmt.Fprintln(w, "Compare error!")
		fmt.Fprintf(w, "%v\n", r.Err)
	}

	fmt.Fprintf(w, "[%s] %s\n", r.File, r.Name)
	if len(r.Mismatches) > 0 {
		fmt.Fprintf(w, "%d mismatches found!\n", len(r.Mismatches))
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, ">>> %s\n", m)
		}
	}
	fmt.Fprintln(w, "--- Execution log")
	for _, line := range r.Log {
		fmt.Fprintf(w, ">>> %s\n", line)
	}
}
